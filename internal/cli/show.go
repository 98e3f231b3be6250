package cli

import (
	"strconv"
	"strings"

	"github.com/lherron/ttags/internal/domain"
	"github.com/lherron/ttags/internal/render"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print out all the data currently stored",
	Long: `Prints the boards, lists and cards of the current snapshot. Nothing is
fetched; use reinit to refresh first.`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

var showOutput string

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Output format: table, json, yaml, tsv (default from config)")
}

func runShow(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	format, err := outputFormat(showOutput, app.Config.Output)
	if err != nil {
		return err
	}

	snap := app.Session.Snapshot()
	r := render.NewRenderer(cmd.OutOrStdout(), format)
	return r.Render(snap, boardsTable(snap.Boards), listsTable(snap.Lists), cardsTable(snap.Cards))
}

func outputFormat(flag, configured string) (render.Format, error) {
	if flag != "" {
		return render.ParseFormat(flag)
	}
	return render.ParseFormat(configured)
}

func boardsTable(boards []domain.Board) render.Table {
	t := render.Table{Title: "Boards", Headers: []string{"NAME", "ID", "LISTS"}}
	for _, b := range boards {
		t.Rows = append(t.Rows, []string{b.Name, b.ID, strconv.Itoa(len(b.Lists))})
	}
	return t
}

func listsTable(lists []domain.List) render.Table {
	t := render.Table{Title: "Lists", Headers: []string{"NAME", "ID"}}
	for _, l := range lists {
		t.Rows = append(t.Rows, []string{l.Name, l.ID})
	}
	return t
}

func cardsTable(cards []domain.Card) render.Table {
	t := render.Table{Title: "Cards", Headers: []string{"NAME", "ID", "LABELS"}}
	for _, c := range cards {
		t.Rows = append(t.Rows, []string{c.Name, c.ID, strings.Join(c.LabelNames(), ", ")})
	}
	return t
}
