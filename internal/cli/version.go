package cli

import (
	"encoding/json"
	"fmt"

	"github.com/lherron/ttags/internal/render"
	"github.com/lherron/ttags/internal/similarity"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Long:        `Displays version, commit, and build date information.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipBootstrap: "true"},
	RunE:        runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionJSON {
		output := map[string]interface{}{
			"version":    Version,
			"commit":     GitCommit,
			"build_date": BuildDate,
			"supported_commands": []string{
				"login", "logout", "suggest", "reinit", "show",
				"journal", "shell", "quit", "version",
			},
			"strategies": []string{similarity.StrategyEdit, similarity.StrategyRatio},
			"supported_formats": []string{
				string(render.FormatTable), string(render.FormatJSON),
				string(render.FormatYAML), string(render.FormatTSV),
			},
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ttags version %s\n", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)
	return nil
}
