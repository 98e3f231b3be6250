package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lherron/ttags/internal/cli/appctx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "ttags",
	Short: "Find and merge near-duplicate Trello labels",
	Long: `ttags fetches your Trello boards, groups label names that look alike
and, once you confirm, rewrites every affected card so that each group
collapses into a single label.

Run without a command to start the interactive shell.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: bootstrap,
}

// annotation that lets a command run without loading configuration
const skipBootstrap = "ttags/skip-bootstrap"

func init() {
	rootCmd.RunE = runShell
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides TTAGS_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (overrides TTAGS_LOG_LEVEL)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the command line against the process streams
func Execute(ctx context.Context) error {
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	ctx = appctx.NewContext(ctx)
	defer func() {
		if app := appctx.FromContext(ctx); app != nil {
			app.Close()
		}
	}()

	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := executeLine(ctx, args)
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// executeLine runs one command through the shared tree. Flags and contexts
// stick to commands between executions, so both are reset first.
func executeLine(ctx context.Context, args []string) error {
	resetFlags(rootCmd)
	setContext(ctx, rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// setContext replaces the context on cmd and every subcommand. Cobra only
// hands the root context to commands that have none yet.
func setContext(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(ctx, c)
	}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// bootstrap builds the App on the first command of the process and keeps
// it in the context for every later one.
func bootstrap(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}
	if appctx.FromContext(cmd.Context()) != nil {
		return nil
	}

	app, err := appctx.Bootstrap(cmd)
	if err != nil {
		return err
	}
	if !appctx.Store(cmd.Context(), app) {
		app.Close()
		return fmt.Errorf("command context cannot hold application state")
	}
	return nil
}

func appFrom(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return app, nil
}
