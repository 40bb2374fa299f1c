// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/surello/internal/models"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Records written by the operation (loads only)
	Records int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Name        string
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
	Records     int64
}

// Snapshot represents the run statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot // sorted by name
}

// Operation names for the collector.
const (
	OpHistoryLoad   = "history_load"
	OpHistoryAppend = "history_append"
	OpScan          = "scan"
)

// LoadOp returns the operation name for loading a source type.
func LoadOp(t models.SourceType) string {
	return "load_" + string(t)
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.RecordLoad(op, duration, 0)
}

// RecordLoad records timing and the number of records written.
func (c *Collector) RecordLoad(op string, duration time.Duration, records int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	m.Records += int64(records)

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning false if no data.
func snapshotOp(name string, m *OperationMetrics) (OperationSnapshot, bool) {
	if m == nil || m.Count == 0 {
		return OperationSnapshot{}, false
	}

	return OperationSnapshot{
		Name:        name,
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
		Records:     m.Records,
	}, true
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	for name, m := range c.ops {
		if op, ok := snapshotOp(name, m); ok {
			snap.Operations = append(snap.Operations, op)
		}
	}
	slices.SortFunc(snap.Operations, func(a, b OperationSnapshot) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return snap
}

// Get returns the snapshot of a single operation.
func (s Snapshot) Get(op string) (OperationSnapshot, bool) {
	for _, o := range s.Operations {
		if o.Name == op {
			return o, true
		}
	}
	return OperationSnapshot{}, false
}
