package cli

import (
	"fmt"
	"strconv"

	"github.com/lherron/ttags/internal/journal"
	"github.com/lherron/ttags/internal/render"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal [pass]",
	Short: "Show the merge journal",
	Long: `Without arguments, lists recent merge passes. With a pass id (or a
unique prefix of one), lists the label mutations of that pass.

--incomplete lists the cards of a pass that lost a replaced label without
receiving the canonical one, which happens when a pass stops between the
two calls. Without a pass id it looks at the most recent pass.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJournal,
}

var (
	journalIncomplete bool
	journalLimit      int
	journalOutput     string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().BoolVar(&journalIncomplete, "incomplete", false, "Only show removals without a matching add")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum number of passes to list (0 for all)")
	journalCmd.Flags().StringVarP(&journalOutput, "output", "o", "", "Output format: table, json, yaml, tsv (default from config)")
}

func runJournal(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	j, err := app.Journal()
	if err != nil {
		return err
	}
	if j == nil {
		fmt.Fprintln(out, "Merge journal is disabled (journal_path: off).")
		return nil
	}

	format, err := outputFormat(journalOutput, app.Config.Output)
	if err != nil {
		return err
	}
	r := render.NewRenderer(out, format)
	ctx := cmd.Context()

	var passID string
	switch {
	case len(args) == 1:
		passID, err = j.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
	case journalIncomplete:
		latest, err := j.Passes(ctx, 1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			fmt.Fprintln(out, "No merge passes recorded.")
			return nil
		}
		passID = latest[0].ID
	default:
		passes, err := j.Passes(ctx, journalLimit)
		if err != nil {
			return err
		}
		if passes == nil {
			passes = []journal.Pass{}
		}
		return r.Render(passes, passesTable(passes))
	}

	var entries []journal.Entry
	if journalIncomplete {
		entries, err = j.Incomplete(ctx, passID)
	} else {
		entries, err = j.Entries(ctx, passID)
	}
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return r.Render(entries, entriesTable(passID, entries))
}

func passesTable(passes []journal.Pass) render.Table {
	t := render.Table{
		Title:   "Merge passes",
		Headers: []string{"ID", "STARTED", "STATUS", "STRATEGY", "MERGED", "CALLS"},
	}
	for _, p := range passes {
		t.Rows = append(t.Rows, []string{
			p.ID, p.StartedAt, p.Status, p.Strategy,
			strconv.Itoa(p.GroupsMerged), strconv.Itoa(p.Calls),
		})
	}
	return t
}

func entriesTable(passID string, entries []journal.Entry) render.Table {
	t := render.Table{
		Title:   "Pass " + passID,
		Headers: []string{"SEQ", "OP", "CARD", "LABEL", "INTO", "STATUS", "ERROR"},
	}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(e.Seq, 10),
			e.Op,
			fmt.Sprintf("%s (%s)", e.CardName, e.CardID),
			fmt.Sprintf("%s (%s)", e.LabelName, e.LabelID),
			e.Canonical,
			e.Status,
			e.Error,
		})
	}
	return t
}
