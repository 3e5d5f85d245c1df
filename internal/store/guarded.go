package store

import (
	"context"
	"sync/atomic"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/resilience"
)

// Guarded wraps a Store so that every call runs through a circuit breaker.
// Any failure, including a fast-fail while the breaker is open, is returned
// tagged with model.ErrPersistenceUnavailable and keeps its cause.
type Guarded struct {
	inner    Store
	breaker  *resilience.CircuitBreaker
	failures atomic.Int64
}

// NewGuarded returns a Guarded store.
func NewGuarded(inner Store, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

// Breaker exposes the breaker for health reporting.
func (g *Guarded) Breaker() *resilience.CircuitBreaker { return g.breaker }

// Failures returns the number of calls that failed since startup.
func (g *Guarded) Failures() int64 { return g.failures.Load() }

func (g *Guarded) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := g.breaker.Execute(ctx, fn); err != nil {
		g.failures.Add(1)
		return model.Tag(model.ErrPersistenceUnavailable, err, "store: "+op)
	}
	return nil
}

func guardVal[T any](ctx context.Context, g *Guarded, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := resilience.ExecuteVal(ctx, g.breaker, fn)
	if err != nil {
		g.failures.Add(1)
		return v, model.Tag(model.ErrPersistenceUnavailable, err, "store: "+op)
	}
	return v, nil
}

func (g *Guarded) UpsertCase(ctx context.Context, c model.Case) error {
	return g.do(ctx, "upsert case", func(ctx context.Context) error { return g.inner.UpsertCase(ctx, c) })
}

func (g *Guarded) UpsertCases(ctx context.Context, cases []model.Case) error {
	return g.do(ctx, "upsert cases", func(ctx context.Context) error { return g.inner.UpsertCases(ctx, cases) })
}

func (g *Guarded) PatchCase(ctx context.Context, key string, patch CasePatch) error {
	return g.do(ctx, "patch case", func(ctx context.Context) error { return g.inner.PatchCase(ctx, key, patch) })
}

func (g *Guarded) DeleteCase(ctx context.Context, key string) error {
	return g.do(ctx, "delete case", func(ctx context.Context) error { return g.inner.DeleteCase(ctx, key) })
}

func (g *Guarded) ListCases(ctx context.Context, filter CaseFilter) ([]model.Case, error) {
	return guardVal(ctx, g, "list cases", func(ctx context.Context) ([]model.Case, error) {
		return g.inner.ListCases(ctx, filter)
	})
}

func (g *Guarded) CreateTestRun(ctx context.Context, run model.TestRun) error {
	return g.do(ctx, "create test run", func(ctx context.Context) error { return g.inner.CreateTestRun(ctx, run) })
}

func (g *Guarded) ListTestRuns(ctx context.Context, filter RunFilter) ([]model.TestRun, error) {
	return guardVal(ctx, g, "list test runs", func(ctx context.Context) ([]model.TestRun, error) {
		return g.inner.ListTestRuns(ctx, filter)
	})
}

func (g *Guarded) DeleteTestRun(ctx context.Context, id string) error {
	return g.do(ctx, "delete test run", func(ctx context.Context) error { return g.inner.DeleteTestRun(ctx, id) })
}

func (g *Guarded) SavePrompt(ctx context.Context, p model.SavedPrompt) (model.SavedPrompt, error) {
	return guardVal(ctx, g, "save prompt", func(ctx context.Context) (model.SavedPrompt, error) {
		return g.inner.SavePrompt(ctx, p)
	})
}

func (g *Guarded) ListPrompts(ctx context.Context) ([]model.SavedPrompt, error) {
	return guardVal(ctx, g, "list prompts", g.inner.ListPrompts)
}

func (g *Guarded) DeletePrompt(ctx context.Context, id string) error {
	return g.do(ctx, "delete prompt", func(ctx context.Context) error { return g.inner.DeletePrompt(ctx, id) })
}

func (g *Guarded) GetSetting(ctx context.Context, key string) (string, bool, error) {
	type setting struct {
		value string
		ok    bool
	}
	s, err := guardVal(ctx, g, "get setting", func(ctx context.Context) (setting, error) {
		v, ok, err := g.inner.GetSetting(ctx, key)
		return setting{v, ok}, err
	})
	return s.value, s.ok, err
}

func (g *Guarded) PutSetting(ctx context.Context, key, value string) error {
	return g.do(ctx, "put setting", func(ctx context.Context) error { return g.inner.PutSetting(ctx, key, value) })
}

// Migrate bypasses the breaker: startup should fail loudly.
func (g *Guarded) Migrate(ctx context.Context) error { return g.inner.Migrate(ctx) }

func (g *Guarded) Ping(ctx context.Context) error {
	return g.do(ctx, "ping", g.inner.Ping)
}

func (g *Guarded) Close() error { return g.inner.Close() }

var _ Store = (*Guarded)(nil)
