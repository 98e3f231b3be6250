package cli

import (
	"errors"
	"fmt"

	"github.com/lherron/ttags/internal/journal"
	"github.com/lherron/ttags/internal/labels"
	"github.com/lherron/ttags/internal/merge"
	"github.com/lherron/ttags/internal/prompt"
	"github.com/lherron/ttags/internal/session"
	"github.com/lherron/ttags/internal/similarity"
	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Find similar labels and merge them",
	Long: `Groups label names that look alike and offers each group for merging.
For every accepted group you pick the label that replaces the others; each
card carrying a replaced label has it removed and the chosen one added.

Stale data is fetched again first. Requires a login.`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

var (
	suggestDryRun   bool
	suggestStrategy string
)

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().BoolVar(&suggestDryRun, "dry-run", false, "Show what each accepted merge would change without changing anything")
	suggestCmd.Flags().StringVar(&suggestStrategy, "strategy", "", "Grouping strategy: edit or ratio (default from config)")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	if !app.Session.Authenticated() {
		return session.ErrAuthenticationRequired
	}

	strategy := suggestStrategy
	if strategy == "" {
		strategy = app.Config.Grouper
	}
	grouper, err := similarity.New(strategy)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.Session.EnsureFresh(ctx); err != nil {
		return err
	}

	byRef, byName := labels.Build(app.Session.Cards())
	groups := grouper.Group(byName.Names())

	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No similar labels found.")
		return nil
	}

	planner := &merge.Planner{
		Operator: app.Operator(),
		Mutator:  app.Session,
		Cache:    app.Session,
		Log:      app.Log,
		DryRun:   suggestDryRun,
	}

	var pass *journal.LazyPass
	if !suggestDryRun {
		j, err := app.Journal()
		if err != nil {
			app.Log.WithError(err).Warn("merge journal unavailable")
		} else if j != nil {
			pass = j.Lazy(strategy)
			planner.Recorder = pass
		}
	}

	sum, runErr := planner.Run(ctx, groups, byRef, byName)

	if pass != nil {
		if err := pass.Finish(ctx, sum, runErr); err != nil {
			app.Log.WithError(err).Warn("failed to close journal pass")
		}
	}

	fmt.Fprintf(out, "Groups offered: %d, merged: %d, skipped: %d, calls issued: %d", sum.Offered, sum.Merged, sum.Skipped, sum.Calls)
	if suggestDryRun {
		fmt.Fprint(out, " (dry run)")
	}
	fmt.Fprintln(out)
	if pass != nil && pass.ID() != "" {
		fmt.Fprintf(out, "Journal pass: %s\n", pass.ID())
	}

	if runErr != nil {
		if errors.Is(runErr, prompt.ErrInputClosed) {
			return runErr
		}
		return fmt.Errorf("merge pass stopped; changes already made stay in place and the next read fetches fresh data: %w", runErr)
	}
	return nil
}
