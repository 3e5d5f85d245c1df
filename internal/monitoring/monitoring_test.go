package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/improve"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/resilience"
	"github.com/sells-group/coding-eval/internal/store"
)

var errDown = errors.New("connection refused")

// flakyStore fails every call while down is set.
type flakyStore struct {
	store.Store
	down bool
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.down {
		return errDown
	}
	return f.Store.Ping(ctx)
}

func (f *flakyStore) UpsertCases(ctx context.Context, cs []model.Case) error {
	if f.down {
		return errDown
	}
	return f.Store.UpsertCases(ctx, cs)
}

func (f *flakyStore) UpsertCase(ctx context.Context, c model.Case) error {
	if f.down {
		return errDown
	}
	return f.Store.UpsertCase(ctx, c)
}

type fixture struct {
	inner   *flakyStore
	guarded *store.Guarded
	repo    *cases.Repository
	flags   *improve.FlagSet
	coll    *Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	inner := &flakyStore{Store: store.NewMemory()}
	g := store.NewGuarded(inner, resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:             "store",
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}))
	repo := cases.New(g)
	flags := improve.NewFlagSet()
	return &fixture{
		inner:   inner,
		guarded: g,
		repo:    repo,
		flags:   flags,
		coll: NewCollector(Sources{
			Cases:    repo,
			Flags:    flags,
			Store:    g,
			InFlight: func() int { return 1 },
			Ready:    func() bool { return true },
		}),
	}
}

func TestCollect_Counts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.IngestGold(ctx, []model.AuditEntry{
		{Identifier: "1234567", PrimaryCode: "N20.0", ProcedureCodes: []string{"52356"}},
		{Identifier: "7654321", PrimaryCode: "N13.2"},
	}, "audit.xlsx", "urology")
	f.repo.IngestNote(ctx, "MRN: 1234567\nLeft ureteral stone.", "note.txt")
	f.flags.Add("1234567")

	snap := f.coll.Collect(ctx)
	assert.Equal(t, 2, snap.Cases)
	assert.Equal(t, 1, snap.CasesByStatus["complete"])
	assert.Equal(t, 1, snap.CasesByStatus["truth_only"])
	assert.Equal(t, 0, snap.CasesByStatus["note_only"])
	assert.Equal(t, 1, snap.Flagged)
	assert.Equal(t, 1, snap.InFlight)
	assert.Zero(t, snap.Runs)
	assert.True(t, snap.ModelReady)
	assert.True(t, snap.StoreReachable)
	assert.Equal(t, "closed", snap.StoreBreaker)
	assert.Zero(t, snap.StoreFailures)
	assert.False(t, snap.Degraded())
}

func TestCollect_NilSources(t *testing.T) {
	snap := NewCollector(Sources{}).Collect(context.Background())
	assert.Zero(t, snap.Cases)
	assert.Len(t, snap.CasesByStatus, 3)
	assert.False(t, snap.ModelReady)
	assert.False(t, snap.StoreReachable)
	assert.True(t, snap.Degraded())
}

func TestCollect_StoreDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.inner.down = true

	_, sync := f.repo.IngestGold(ctx, []model.AuditEntry{{Identifier: "1234567", PrimaryCode: "N20.0"}}, "a.xlsx", "")
	assert.False(t, sync.Durable())

	snap := f.coll.Collect(ctx)
	assert.Equal(t, 1, snap.Cases, "local state keeps the case")
	assert.False(t, snap.StoreReachable)
	assert.Equal(t, "open", snap.StoreBreaker)
	assert.Equal(t, int64(2), snap.StoreFailures)
	assert.True(t, snap.Degraded())
}

func TestAlerter_Evaluate(t *testing.T) {
	a := NewAlerter()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	healthy := &Snapshot{StoreReachable: true, StoreBreaker: "closed", ModelReady: true, CollectedAt: now}
	assert.Empty(t, a.Evaluate(healthy))

	down := &Snapshot{StoreReachable: false, StoreBreaker: "open", StoreFailures: 3, CollectedAt: now}
	alerts := a.Evaluate(down)
	require.Len(t, alerts, 3)
	assert.Equal(t, AlertStoreUnavailable, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "breaker open")
	assert.Equal(t, AlertStoreFailures, alerts[1].Type)
	assert.Equal(t, int64(3), alerts[1].Details["new"])
	assert.Equal(t, AlertModelUnavailable, alerts[2].Type)

	// Unchanged failure count is not reported again.
	down.StoreFailures = 3
	alerts = a.Evaluate(down)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertModelUnavailable, alerts[1].Type)

	down.StoreFailures = 5
	alerts = a.Evaluate(down)
	require.Len(t, alerts, 3)
	assert.Equal(t, int64(2), alerts[1].Details["new"])
}

func TestChecker_CheckLogsAlerts(t *testing.T) {
	f := newFixture(t)
	f.inner.down = true

	core, logs := observer.New(zap.DebugLevel)
	c := NewChecker(f.coll, NewAlerter(), 0)
	assert.Equal(t, time.Minute, c.interval)

	alerts := c.Check(context.Background(), zap.New(core))
	require.NotEmpty(t, alerts)
	assert.Equal(t, 1, logs.FilterMessageSnippet("store call(s) failed").Len())
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	c := NewChecker(f.coll, NewAlerter(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}
