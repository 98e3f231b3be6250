package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout of your current session",
	Long:  `Forgets the session credentials and all fetched data.`,
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	if !app.Session.Authenticated() {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in. Doing nothing.")
		return nil
	}

	app.Session.Logout()
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}
