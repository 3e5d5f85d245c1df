// Package ledger is the append-only history of scored test runs.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/store"
)

// Ledger holds test runs newest first. Runs are never updated; the only
// mutations are Append and Delete.
type Ledger struct {
	store store.RunStore
	now   func() time.Time

	mu   sync.RWMutex
	runs []model.TestRun
	last time.Time
}

// New creates an empty ledger backed by st.
func New(st store.RunStore) *Ledger {
	return &Ledger{store: st, now: time.Now}
}

// Load replaces the in-memory history with the store's contents.
func (l *Ledger) Load(ctx context.Context) error {
	runs, err := l.store.ListTestRuns(ctx, store.RunFilter{})
	if err != nil {
		return eris.Wrap(err, "ledger: load")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = runs
	l.last = time.Time{}
	if len(runs) > 0 {
		l.last = runs[0].CreatedAt
	}
	return nil
}

// Append assigns run a fresh id and timestamp, records it as the newest run
// and returns the stored copy. Timestamps strictly increase in append order,
// even when the clock does not.
func (l *Ledger) Append(ctx context.Context, run model.TestRun) (model.TestRun, model.Sync) {
	l.mu.Lock()
	ts := l.now().UTC().Truncate(time.Microsecond)
	if !ts.After(l.last) {
		ts = l.last.Add(time.Microsecond)
	}
	l.last = ts
	run.ID = uuid.New().String()
	run.CreatedAt = ts
	run.Gold = run.Gold.Clone()
	l.runs = append([]model.TestRun{run}, l.runs...)
	l.mu.Unlock()

	zap.L().Debug("ledger: appended run",
		zap.String("run", run.ID),
		zap.String("case", run.CaseKey),
		zap.String("prompt", run.PromptName),
	)
	if err := l.store.CreateTestRun(ctx, run); err != nil {
		zap.L().Warn("ledger: run recorded locally only", zap.String("run", run.ID), zap.Error(err))
		return run, model.LocalOnly(err)
	}
	return run, model.Committed()
}

// Delete removes one run by id. Unknown ids are a no-op.
func (l *Ledger) Delete(ctx context.Context, id string) model.Sync {
	l.mu.Lock()
	for i := range l.runs {
		if l.runs[i].ID == id {
			l.runs = append(l.runs[:i:i], l.runs[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	if err := l.store.DeleteTestRun(ctx, id); err != nil {
		zap.L().Warn("ledger: delete applied locally only", zap.String("run", id), zap.Error(err))
		return model.LocalOnly(err)
	}
	return model.Committed()
}

// List returns all runs, newest first.
func (l *Ledger) List() []model.TestRun {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.TestRun(nil), l.runs...)
}

// Get returns the run with the given id.
func (l *Ledger) Get(id string) (model.TestRun, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.runs {
		if r.ID == id {
			return r, true
		}
	}
	return model.TestRun{}, false
}

// ForCase returns the runs for one case, newest first.
func (l *Ledger) ForCase(key string) []model.TestRun {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.TestRun
	for _, r := range l.runs {
		if r.CaseKey == key {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of runs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.runs)
}
