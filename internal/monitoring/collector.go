// Package monitoring reports the health of an operator session.
package monitoring

import (
	"context"
	"time"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/resilience"
)

// Snapshot is a point-in-time view of session health.
type Snapshot struct {
	Cases         int            `json:"cases"`
	CasesByStatus map[string]int `json:"cases_by_status"`
	Runs          int            `json:"runs"`
	Prompts       int            `json:"prompts"`
	Flagged       int            `json:"flagged"`
	InFlight      int            `json:"in_flight"`

	StoreBreaker   string `json:"store_breaker"`
	StoreReachable bool   `json:"store_reachable"`
	StoreFailures  int64  `json:"store_failures"`
	ModelReady     bool   `json:"model_ready"`

	CollectedAt time.Time `json:"collected_at"`
}

// Degraded reports whether writes are not reaching durable storage.
func (s *Snapshot) Degraded() bool {
	return !s.StoreReachable || s.StoreBreaker == resilience.CircuitOpen.String()
}

// CaseCounter is satisfied by cases.Repository.
type CaseCounter interface {
	Len() int
	StatusCounts() map[model.CaseStatus]int
}

// Counter is satisfied by the run ledger, prompt library and flag set.
type Counter interface {
	Len() int
}

// StoreHealth is satisfied by store.Guarded.
type StoreHealth interface {
	Ping(ctx context.Context) error
	Breaker() *resilience.CircuitBreaker
	Failures() int64
}

// Sources lists what the collector reads. Nil members are reported as zero.
type Sources struct {
	Cases    CaseCounter
	Runs     Counter
	Prompts  Counter
	Flags    Counter
	Store    StoreHealth
	InFlight func() int
	Ready    func() bool
}

// Collector gathers snapshots from the in-memory session state.
type Collector struct {
	src Sources
	now func() time.Time
}

// NewCollector creates a collector over src.
func NewCollector(src Sources) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect builds a snapshot. Only the store ping touches the network.
func (c *Collector) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		CasesByStatus: map[string]int{
			string(model.CaseStatusComplete):  0,
			string(model.CaseStatusTruthOnly): 0,
			string(model.CaseStatusNoteOnly):  0,
		},
		StoreBreaker: resilience.CircuitClosed.String(),
		CollectedAt:  c.now().UTC(),
	}

	if c.src.Cases != nil {
		snap.Cases = c.src.Cases.Len()
		for status, n := range c.src.Cases.StatusCounts() {
			snap.CasesByStatus[string(status)] = n
		}
	}
	snap.Runs = count(c.src.Runs)
	snap.Prompts = count(c.src.Prompts)
	snap.Flagged = count(c.src.Flags)
	if c.src.InFlight != nil {
		snap.InFlight = c.src.InFlight()
	}
	if c.src.Ready != nil {
		snap.ModelReady = c.src.Ready()
	}

	if c.src.Store != nil {
		snap.StoreReachable = c.src.Store.Ping(ctx) == nil
		if b := c.src.Store.Breaker(); b != nil {
			snap.StoreBreaker = b.State().String()
		}
		snap.StoreFailures = c.src.Store.Failures()
	}
	return snap
}

func count(c Counter) int {
	if c == nil {
		return 0
	}
	return c.Len()
}
