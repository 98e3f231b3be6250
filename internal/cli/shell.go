package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lherron/ttags/internal/prompt"
	"github.com/spf13/cobra"
)

const (
	shellIntro  = "Welcome to TrelloTags. Type help or ? to list commands."
	shellPrompt = "(ttags) > "
)

// errQuit ends the shell
var errQuit = errors.New("quit")

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	Long: `Reads commands line by line until quit or end of input. The session,
fetched data and dirty state carry over from one command to the next.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

var quitCmd = &cobra.Command{
	Use:     "quit",
	Aliases: []string{"exit"},
	Short:   "Quit TrelloTags",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return errQuit
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(quitCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	if app.InShell {
		return fmt.Errorf("already in the shell")
	}
	app.InShell = true
	defer func() { app.InShell = false }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	fmt.Fprintln(out, shellIntro)
	for ctx.Err() == nil {
		fmt.Fprint(out, shellPrompt)
		line, err := prompt.ReadLine(app.In)
		if errors.Is(err, prompt.ErrInputClosed) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		if words[0] == "?" {
			words[0] = "help"
		}

		err = executeLine(ctx, words)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(errOut, "Error: %s\n", ErrorMessage(err))
		}
	}
	return nil
}
