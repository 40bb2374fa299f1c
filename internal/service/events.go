package service

import (
	"github.com/raphaelgruber/surello/internal/loader"
	"github.com/raphaelgruber/surello/internal/models"
)

// EventKind identifies a per-file outcome.
type EventKind string

const (
	EventUnsupported EventKind = "unsupported"
	EventSkipped     EventKind = "skipped"
	EventLoaded      EventKind = "loaded"
	EventUnrecorded  EventKind = "unrecorded"
	EventFailed      EventKind = "failed"
	EventScanError   EventKind = "scan_error"
)

// Event reports the outcome for one scanned file.
type Event struct {
	Kind     EventKind
	Path     string
	Type     models.SourceType
	Previous *models.HistoryEntry // EventSkipped
	Stats    loader.Stats         // EventLoaded, EventUnrecorded, EventFailed
	Err      error                // EventFailed, EventUnrecorded, EventScanError
}

// Message renders the event as a human-readable status line.
func (e Event) Message() string {
	switch e.Kind {
	case EventUnsupported:
		return "Unsupported type or unknown file: " + e.Path
	case EventSkipped:
		at := ""
		if e.Previous != nil {
			at = e.Previous.ExecutionDatetimeUTC
		}
		return "Skipping " + e.Path + " because it was previously executed at " + at
	case EventLoaded:
		return "Loaded " + e.Path + " (" + string(e.Type) + ")"
	case EventUnrecorded:
		return "Loaded " + e.Path + " but could not record it: " + errText(e.Err)
	case EventFailed:
		return "Failed " + e.Path + ": " + errText(e.Err)
	case EventScanError:
		return "Unreadable " + e.Path + ": " + errText(e.Err)
	}
	return e.Path
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
