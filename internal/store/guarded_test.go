package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/resilience"
)

// flakyStore fails every case upsert while down is set.
type flakyStore struct {
	Store
	down  bool
	calls int
}

func (f *flakyStore) UpsertCase(_ context.Context, _ model.Case) error {
	f.calls++
	if f.down {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func (f *flakyStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	f.calls++
	if f.down {
		return "", false, errors.New("dial tcp: connection refused")
	}
	return "value-" + key, true, nil
}

func newGuarded(inner Store) *Guarded {
	return NewGuarded(inner, resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:             "store",
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}))
}

func TestGuarded_TagsFailures(t *testing.T) {
	inner := &flakyStore{down: true}
	g := newGuarded(inner)

	err := g.UpsertCase(context.Background(), goldCase("1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistenceUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "persistence_unavailable", model.ErrorKind(err))
}

func TestGuarded_OpensAfterThreshold(t *testing.T) {
	inner := &flakyStore{down: true}
	g := newGuarded(inner)
	ctx := context.Background()

	_ = g.UpsertCase(ctx, goldCase("1"))
	_ = g.UpsertCase(ctx, goldCase("1"))
	assert.Equal(t, resilience.CircuitOpen, g.Breaker().State())

	err := g.UpsertCase(ctx, goldCase("1"))
	assert.ErrorIs(t, err, model.ErrPersistenceUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the store")
	assert.Equal(t, int64(3), g.Failures())
}

func TestGuarded_PassesValuesThrough(t *testing.T) {
	g := newGuarded(&flakyStore{})

	v, ok, err := g.GetSetting(context.Background(), "model")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value-model", v)
}

func TestGuarded_WithSQLite(t *testing.T) {
	g := newGuarded(newTestSQLiteStore(t))
	ctx := context.Background()

	require.NoError(t, g.UpsertCases(ctx, []model.Case{goldCase("1"), goldCase("2")}))
	cases, err := g.ListCases(ctx, CaseFilter{})
	require.NoError(t, err)
	assert.Len(t, cases, 2)

	p, err := g.SavePrompt(ctx, model.SavedPrompt{Name: "Baseline", Text: "x"})
	require.NoError(t, err)
	prompts, err := g.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, p.ID, prompts[0].ID)
	require.NoError(t, g.Ping(ctx))
}
