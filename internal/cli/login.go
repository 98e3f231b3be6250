package cli

import (
	"fmt"

	"github.com/lherron/ttags/internal/auth"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start a TrelloTags session",
	Long: `Authorizes ttags in the browser and fetches your boards, lists and cards.

The client key and secret come from client_credentials.json (or
TTAGS_CLIENT_KEY and TTAGS_CLIENT_SECRET). With api_key and api_token
configured the browser step is skipped.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var loginPrintToken bool

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolVar(&loginPrintToken, "print-token", false, "Print the issued key and token for use as api_key/api_token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	authorizer, err := app.Authorizer()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, browser := authorizer.(*auth.OAuth); browser {
		fmt.Fprintln(out, "Authorize application by logging in at your browser.")
	}

	if err := app.Session.Login(cmd.Context(), authorizer); err != nil {
		return err
	}
	fmt.Fprintln(out, "Connected with Trello")

	snap := app.Session.Snapshot()
	fmt.Fprintf(out, "Retrieved data: %d board(s), %d list(s), %d card(s)\n", len(snap.Boards), len(snap.Lists), len(snap.Cards))

	if loginPrintToken {
		creds := app.Session.Credentials()
		fmt.Fprintf(out, "api_key: %s\napi_token: %s\n", creds.Key, creds.Token)
	}

	fmt.Fprintln(out, "Logged in.")
	return nil
}
