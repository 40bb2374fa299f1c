package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raphaelgruber/surello/internal/metrics"
	"github.com/raphaelgruber/surello/internal/service"
)

// printRunSummary writes the counts of a finished run.
func printRunSummary(w io.Writer, r *service.RunResult) {
	if r == nil {
		return
	}
	var b strings.Builder
	writeRunSummary(&b, r)
	fmt.Fprint(w, b.String())
}

func writeRunSummary(b *strings.Builder, r *service.RunResult) {
	fmt.Fprintf(b, "Run %s %s in %s\n", r.RunID, r.State, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(b, "  Loaded:       %d\n", r.Loaded)
	fmt.Fprintf(b, "  Skipped:      %d\n", r.Skipped)
	fmt.Fprintf(b, "  Unsupported:  %d\n", r.Unsupported)
	if r.Records > 0 {
		fmt.Fprintf(b, "  Records:      %d\n", r.Records)
	}
	if r.Unrecorded > 0 {
		fmt.Fprintf(b, "  Unrecorded:   %d (loaded, will be retried)\n", r.Unrecorded)
	}
	if r.ScanErrors > 0 {
		fmt.Fprintf(b, "  Unreadable:   %d\n", r.ScanErrors)
	}
	if r.Failed > 0 {
		fmt.Fprintf(b, "  Failed:       %d\n", r.Failed)
		for _, f := range r.Failures {
			fmt.Fprintf(b, "    • %s: %v\n", f.Path, f.Err)
		}
	}
}

// runError turns a completed run with failed files into the command error,
// so the process exits non-zero. Nil when every file loaded or was skipped.
func runError(r *service.RunResult) error {
	if r == nil || r.Failed == 0 || len(r.Failures) == 0 {
		return nil
	}
	first := r.Failures[0]
	return fmt.Errorf("%d file(s) failed; first: %s: %w", r.Failed, first.Path, first.Err)
}

// printStats displays per-operation timing statistics.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\nStatistics (uptime %.1f seconds)\n", snap.UptimeSeconds)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	if len(snap.Operations) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}
	fmt.Fprintf(w, "%-16s %6s %10s %10s %10s %8s\n", "Operation", "Count", "Avg (ms)", "Min (ms)", "Max (ms)", "Records")
	for _, op := range snap.Operations {
		records := "-"
		if op.Records > 0 {
			records = fmt.Sprintf("%d", op.Records)
		}
		fmt.Fprintf(w, "%-16s %6d %10.1f %10d %10d %8s\n",
			op.Name, op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs, records)
	}
}
