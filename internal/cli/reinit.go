package cli

import (
	"fmt"

	"github.com/lherron/ttags/internal/session"
	"github.com/spf13/cobra"
)

var reinitCmd = &cobra.Command{
	Use:   "reinit",
	Short: "Reinitialize the data",
	Long: `Discards the fetched snapshot and fetches every board, list and card
again. May solve errors caused by stale data. Requires a login.`,
	Args: cobra.NoArgs,
	RunE: runReinit,
}

func init() {
	rootCmd.AddCommand(reinitCmd)
}

func runReinit(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	if !app.Session.Authenticated() {
		return session.ErrAuthenticationRequired
	}

	if err := app.Session.Refresh(cmd.Context()); err != nil {
		return err
	}

	snap := app.Session.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Retrieved data: %d board(s), %d list(s), %d card(s)\n", len(snap.Boards), len(snap.Lists), len(snap.Cards))
	return nil
}
