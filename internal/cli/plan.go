package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/surello/internal/service"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Show what a run would load, without loading anything",
	Long: `Scan a directory and report, for every file, whether a run would load it,
skip it as already executed, or ignore it as unsupported.

Examples:
  surello plan
  surello plan ./seed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&runFollowSymlinks, "follow-symlinks", false, "follow symbolic links while scanning")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("follow-symlinks") {
		cfg.FollowSymlinks = runFollowSymlinks
	}

	orch := newOrchestrator(dataDir(args), nil, nil, logger)
	plan, err := orch.Plan(cmd.Context())
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	printPlan(os.Stdout, plan, defaultTheme)
	return nil
}

// actionStyle colors a plan action.
func (t Theme) actionStyle(a service.Action) lipgloss.Style {
	switch a {
	case service.ActionLoad:
		return t.completedStyle()
	case service.ActionError:
		return t.errorStyle()
	case service.ActionSkip:
		return t.statusStyle()
	default:
		return t.hintStyle()
	}
}

func printPlan(w io.Writer, plan []service.PlannedFile, theme Theme) {
	if len(plan) == 0 {
		fmt.Fprintln(w, "No files found.")
		return
	}

	for _, p := range plan {
		action := theme.actionStyle(p.Action).Render(fmt.Sprintf("%-11s", p.Action))
		line := fmt.Sprintf("%s %s", action, p.Path)
		if p.Symlink {
			line += theme.hintStyle().Render(" (symlink)")
		}
		switch p.Action {
		case service.ActionSkip:
			line += theme.hintStyle().Render(" (executed " + p.Previous.ExecutionDatetimeUTC + ")")
		case service.ActionError:
			line += ": " + p.Err.Error()
		case service.ActionLoad, service.ActionUnsupported:
			if p.Type != "" {
				line += " [" + string(p.Type) + "]"
			}
		}
		fmt.Fprintln(w, line)
	}

	counts := service.CountActions(plan)
	fmt.Fprintf(w, "\n%d to load, %d already executed, %d unsupported",
		counts[service.ActionLoad], counts[service.ActionSkip], counts[service.ActionUnsupported])
	if n := counts[service.ActionError]; n > 0 {
		fmt.Fprintf(w, ", %d unreadable", n)
	}
	fmt.Fprintln(w)
}
