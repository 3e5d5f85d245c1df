// Package cases links gold-standard entries and clinical notes into cases
// keyed by patient record number.
package cases

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/extract"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/store"
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status    model.CaseStatus `json:"status,omitempty"`
	Specialty string           `json:"specialty,omitempty"`
}

func (f Filter) match(c *model.Case) bool {
	if f.Status != "" && c.Status() != f.Status {
		return false
	}
	if f.Specialty != "" && c.Specialty != f.Specialty {
		return false
	}
	return true
}

// NoteResult is the outcome of ingesting one clinical note. OK is false when
// no identifier could be extracted, in which case nothing was changed.
type NoteResult struct {
	OK   bool       `json:"ok"`
	Key  string     `json:"key,omitempty"`
	Sync model.Sync `json:"sync"`
}

// Repository is the in-memory view of all cases, mirrored to a store.
// Ingestion only ever adds data: a case can become complete but never
// incomplete again.
type Repository struct {
	store store.CaseStore
	now   func() time.Time

	mu    sync.RWMutex
	cases map[string]*model.Case
	order []string
}

// New creates an empty repository backed by st.
func New(st store.CaseStore) *Repository {
	return &Repository{
		store: st,
		now:   time.Now,
		cases: make(map[string]*model.Case),
	}
}

// Load replaces the in-memory view with the store's contents.
func (r *Repository) Load(ctx context.Context) error {
	all, err := r.store.ListCases(ctx, store.CaseFilter{})
	if err != nil {
		return eris.Wrap(err, "cases: load")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases = make(map[string]*model.Case, len(all))
	r.order = r.order[:0]
	for i := range all {
		c := all[i]
		if _, dup := r.cases[c.Key]; dup {
			continue
		}
		r.cases[c.Key] = &c
		r.order = append(r.order, c.Key)
	}
	zap.L().Debug("cases: loaded", zap.Int("count", len(r.order)))
	return nil
}

// IngestGold merges audit entries into cases. Entries without an identifier
// are skipped silently. The returned count is the number of entries applied,
// so two entries for the same key count twice. Ground truth is last-write-wins;
// specialty is only set on cases that have none.
func (r *Repository) IngestGold(ctx context.Context, entries []model.AuditEntry, sourceLabel, specialty string) (int, model.Sync) {
	var (
		count   int
		touched []model.Case
		seen    = make(map[string]int)
	)

	r.mu.Lock()
	now := r.now().UTC()
	for _, e := range entries {
		key := strings.TrimSpace(e.Identifier)
		if key == "" {
			continue
		}
		c := r.getOrCreate(key, now)
		gt := e.GroundTruth()
		c.GroundTruth = &gt
		if c.Specialty == "" {
			c.Specialty = specialty
		}
		if sourceLabel != "" {
			c.Metadata.GoldSource = sourceLabel
		}
		if e.SourceFilenameReference != "" {
			c.Metadata.GoldFileRef = e.SourceFilenameReference
		}
		c.UpdatedAt = now
		count++

		if i, ok := seen[key]; ok {
			touched[i] = c.Clone()
		} else {
			seen[key] = len(touched)
			touched = append(touched, c.Clone())
		}
	}
	r.mu.Unlock()

	if len(touched) == 0 {
		return count, model.Committed()
	}
	zap.L().Info("cases: ingested gold entries",
		zap.Int("entries", count),
		zap.Int("cases", len(touched)),
		zap.String("source", sourceLabel),
	)
	return count, r.persist("ingest gold", r.store.UpsertCases(ctx, touched))
}

// IngestNote extracts the record number from text and merges the note into
// its case, keeping any ground truth already present.
func (r *Repository) IngestNote(ctx context.Context, text, filename string) NoteResult {
	key, ok := extract.Identifier(text)
	if !ok {
		zap.L().Info("cases: no identifier in note", zap.String("file", filename))
		return NoteResult{Sync: model.Committed()}
	}

	r.mu.Lock()
	now := r.now().UTC()
	c := r.getOrCreate(key, now)
	c.RawText = text
	if filename != "" {
		c.Metadata.NoteFilename = filename
	}
	c.UpdatedAt = now
	snapshot := c.Clone()
	r.mu.Unlock()

	zap.L().Info("cases: ingested note",
		zap.String("case", key),
		zap.String("file", filename),
		zap.String("status", string(snapshot.Status())),
	)
	return NoteResult{
		OK:   true,
		Key:  key,
		Sync: r.persist("ingest note", r.store.UpsertCase(ctx, snapshot)),
	}
}

// UpdateSpecialty overwrites a case's specialty. Unlike ingestion this is an
// explicit operator edit, so it replaces an existing value.
func (r *Repository) UpdateSpecialty(ctx context.Context, key, specialty string) (model.Sync, error) {
	r.mu.Lock()
	c, ok := r.cases[key]
	if !ok {
		r.mu.Unlock()
		return model.Committed(), eris.Wrapf(model.ErrCaseNotFound, "cases: update specialty %s", key)
	}
	c.Specialty = specialty
	c.UpdatedAt = r.now().UTC()
	r.mu.Unlock()

	return r.persist("update specialty", r.store.PatchCase(ctx, key, store.CasePatch{Specialty: &specialty})), nil
}

// Delete removes a case. Deleting an unknown key is a no-op.
func (r *Repository) Delete(ctx context.Context, key string) model.Sync {
	r.mu.Lock()
	if _, ok := r.cases[key]; ok {
		delete(r.cases, key)
		for i, k := range r.order {
			if k == key {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	return r.persist("delete", r.store.DeleteCase(ctx, key))
}

// Get returns a copy of the case for key.
func (r *Repository) Get(key string) (model.Case, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[key]
	if !ok {
		return model.Case{}, false
	}
	return c.Clone(), true
}

// List returns copies of matching cases in first-ingestion order.
func (r *Repository) List(f Filter) []model.Case {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Case, 0, len(r.order))
	for _, key := range r.order {
		c := r.cases[key]
		if f.match(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// ListComplete returns every case that has both halves.
func (r *Repository) ListComplete() []model.Case {
	return r.List(Filter{Status: model.CaseStatusComplete})
}

// Len returns the number of cases.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// StatusCounts returns the number of cases per status.
func (r *Repository) StatusCounts() map[model.CaseStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[model.CaseStatus]int{
		model.CaseStatusComplete:  0,
		model.CaseStatusTruthOnly: 0,
		model.CaseStatusNoteOnly:  0,
	}
	for _, c := range r.cases {
		counts[c.Status()]++
	}
	return counts
}

// getOrCreate must be called with mu held.
func (r *Repository) getOrCreate(key string, now time.Time) *model.Case {
	if c, ok := r.cases[key]; ok {
		return c
	}
	c := &model.Case{Key: key, CreatedAt: now, UpdatedAt: now}
	r.cases[key] = c
	r.order = append(r.order, key)
	return c
}

func (r *Repository) persist(op string, err error) model.Sync {
	if err != nil {
		zap.L().Warn("cases: change applied locally only", zap.String("op", op), zap.Error(err))
		return model.LocalOnly(err)
	}
	return model.Committed()
}
