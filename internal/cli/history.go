package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/raphaelgruber/surello/internal/history"
	"github.com/raphaelgruber/surello/internal/models"
	"github.com/spf13/cobra"
)

var (
	historyType   string
	historyPrefix string
	historyFailed bool
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded file executions",
	Long: `List the entries of the surello_history table, oldest first.

Examples:
  surello history
  surello history --type csv
  surello history --prefix surello_data/seed
  surello history --failed`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyType, "type", "t", "", "filter by source type (surql, csv, jsonlines)")
	historyCmd.Flags().StringVarP(&historyPrefix, "prefix", "p", "", "filter by source path prefix")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "show only failed executions")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the most recent n entries (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	filter := history.Filter{
		Type:       models.SourceType(historyType),
		PathPrefix: historyPrefix,
		FailedOnly: historyFailed,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return fmt.Errorf("unknown source type %q", historyType)
	}

	entries, err := history.New(dbClient).List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[len(entries)-historyLimit:]
	}

	printHistory(os.Stdout, entries, defaultTheme)
	return nil
}

func printHistory(w io.Writer, entries []models.HistoryEntry, theme Theme) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history entries found.")
		return
	}

	for _, e := range entries {
		result := theme.completedStyle().Render("ok")
		if !e.Succeeded() {
			result = theme.errorStyle().Render("failed")
		}
		fmt.Fprintf(w, "%s  %-9s %s  %s\n", e.ExecutionDatetimeUTC, e.SourceType, result, e.SourcePath)
		if !e.Succeeded() {
			fmt.Fprintf(w, "    %s\n", theme.hintStyle().Render(e.ExecutionResult))
		}
	}
	fmt.Fprintf(w, "\nTotal: %d entries\n", len(entries))
}
