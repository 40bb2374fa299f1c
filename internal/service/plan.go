package service

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/surello/internal/history"
	"github.com/raphaelgruber/surello/internal/models"
	"github.com/raphaelgruber/surello/internal/scanner"
)

// Action is the decision taken for one scanned file.
type Action string

const (
	ActionLoad        Action = "load"
	ActionSkip        Action = "skip"
	ActionUnsupported Action = "unsupported"
	ActionError       Action = "error"
)

// PlannedFile is the decision for one file.
type PlannedFile struct {
	Path     string
	Type     models.SourceType
	Action   Action
	Symlink  bool                 // reached through a followed symlink
	Previous *models.HistoryEntry // set for ActionSkip
	Err      error                // set for ActionError
}

// decide classifies a scanned entry and checks it against the snapshot.
// A classified type without a registered loader counts as unsupported.
func (o *Orchestrator) decide(snap *history.Snapshot, entry scanner.Entry) PlannedFile {
	p := PlannedFile{Path: entry.Path, Symlink: entry.Symlink, Action: ActionUnsupported}
	t, ok := models.Classify(entry.Path)
	if !ok {
		return p
	}
	p.Type = t
	if _, registered := o.loaders[t]; !registered {
		return p
	}
	if prev, done := snap.Lookup(entry.Path, t); done {
		p.Action = ActionSkip
		p.Previous = &prev
		return p
	}
	p.Action = ActionLoad
	return p
}

// Plan reports what Run would do without loading or recording anything.
func (o *Orchestrator) Plan(ctx context.Context) ([]PlannedFile, error) {
	snap, seq, err := o.prepare(ctx)
	if err != nil {
		return nil, err
	}

	var plan []PlannedFile
	for entry, scanErr := range seq {
		if err := ctx.Err(); err != nil {
			return plan, fmt.Errorf("plan cancelled: %w", err)
		}
		if scanErr != nil {
			plan = append(plan, PlannedFile{Path: entry.Path, Action: ActionError, Err: scanErr})
			continue
		}
		plan = append(plan, o.decide(snap, entry))
	}
	return plan, nil
}

// CountActions tallies a plan by action.
func CountActions(plan []PlannedFile) map[Action]int {
	counts := make(map[Action]int, 4)
	for _, p := range plan {
		counts[p.Action]++
	}
	return counts
}
