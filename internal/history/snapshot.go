package history

import "github.com/raphaelgruber/surello/internal/models"

type key struct {
	path string
	typ  models.SourceType
}

// Snapshot is an in-memory view of the history taken once per run.
// It is never refreshed; entries appended during the run are not visible.
type Snapshot struct {
	entries []models.HistoryEntry
	done    map[key]models.HistoryEntry
}

// NewSnapshot indexes entries by (source_path, source_type).
// Only successful entries count as executed; the first one in backend order wins.
func NewSnapshot(entries []models.HistoryEntry) *Snapshot {
	s := &Snapshot{
		entries: entries,
		done:    make(map[key]models.HistoryEntry, len(entries)),
	}
	for _, e := range entries {
		if !e.Succeeded() {
			continue
		}
		k := key{e.SourcePath, e.SourceType}
		if _, exists := s.done[k]; !exists {
			s.done[k] = e
		}
	}
	return s
}

// Lookup returns the successful entry for the pair, if any.
func (s *Snapshot) Lookup(path string, t models.SourceType) (models.HistoryEntry, bool) {
	e, ok := s.done[key{path, t}]
	return e, ok
}

// Len returns the number of entries, including failed attempts.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Executed returns the number of distinct successfully executed pairs.
func (s *Snapshot) Executed() int {
	return len(s.done)
}
