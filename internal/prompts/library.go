// Package prompts keeps the named prompt versions under evaluation and the
// harness settings that select among them.
package prompts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/store"
)

// DefaultName names the built-in prompt used while the library is empty.
const DefaultName = "Default"

// DefaultText is the built-in coding prompt.
const DefaultText = `You are an expert certified medical coder (CPC) auditing outpatient encounters.

Read the clinical note and assign:
- the single primary ICD-10-CM diagnosis code that best supports medical necessity for the visit;
- any secondary ICD-10-CM codes for documented, clinically relevant conditions;
- every billable CPT procedure code supported by the documentation, appending modifiers (e.g. "-25", "-59") where the documentation requires them.

Code only what is documented. Do not code rule-out diagnoses. Prefer the most specific code the documentation supports.

Respond with a JSON object: {"primary_code": "...", "secondary_codes": [...], "procedure_codes": [...], "reasoning": "..."}`

// Default returns the built-in prompt.
func Default() model.SavedPrompt {
	return model.SavedPrompt{Name: DefaultName, Text: DefaultText}
}

// Library is the in-memory mirror of saved prompts. Names are unique;
// saving an existing name replaces its text and keeps its id and creation
// time.
type Library struct {
	store store.PromptStore
	now   func() time.Time

	mu     sync.RWMutex
	byName map[string]*model.SavedPrompt
}

// New creates an empty library backed by st.
func New(st store.PromptStore) *Library {
	return &Library{
		store:  st,
		now:    time.Now,
		byName: make(map[string]*model.SavedPrompt),
	}
}

// Load replaces the in-memory library with the store's contents.
func (l *Library) Load(ctx context.Context) error {
	all, err := l.store.ListPrompts(ctx)
	if err != nil {
		return eris.Wrap(err, "prompts: load")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byName = make(map[string]*model.SavedPrompt, len(all))
	for i := range all {
		p := all[i]
		l.byName[p.Name] = &p
	}
	return nil
}

// Save upserts a prompt by name.
func (l *Library) Save(ctx context.Context, name, text string) (model.SavedPrompt, model.Sync, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.SavedPrompt{}, model.Committed(), eris.New("prompts: name is required")
	}

	l.mu.Lock()
	now := l.now().UTC()
	p, ok := l.byName[name]
	if !ok {
		p = &model.SavedPrompt{ID: uuid.New().String(), Name: name, CreatedAt: now}
		l.byName[name] = p
	}
	p.Text = text
	p.UpdatedAt = now
	local := *p
	l.mu.Unlock()

	stored, err := l.store.SavePrompt(ctx, local)
	if err != nil {
		zap.L().Warn("prompts: saved locally only", zap.String("prompt", name), zap.Error(err))
		return local, model.LocalOnly(err), nil
	}

	// The store keeps the identity of a name it already had.
	l.mu.Lock()
	if cur, ok := l.byName[name]; ok {
		cur.ID = stored.ID
		cur.CreatedAt = stored.CreatedAt
		local = *cur
	}
	l.mu.Unlock()
	zap.L().Info("prompts: saved", zap.String("prompt", name), zap.Bool("new", !ok))
	return local, model.Committed(), nil
}

// Delete removes a prompt by id. Unknown ids are a no-op.
func (l *Library) Delete(ctx context.Context, id string) model.Sync {
	l.mu.Lock()
	for name, p := range l.byName {
		if p.ID == id {
			delete(l.byName, name)
			break
		}
	}
	l.mu.Unlock()

	if err := l.store.DeletePrompt(ctx, id); err != nil {
		zap.L().Warn("prompts: deleted locally only", zap.String("id", id), zap.Error(err))
		return model.LocalOnly(err)
	}
	return model.Committed()
}

// Get looks a prompt up by name.
func (l *Library) Get(name string) (model.SavedPrompt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.byName[name]
	if !ok {
		return model.SavedPrompt{}, false
	}
	return *p, true
}

// Resolve returns the named prompt. An empty name, or the default name when
// no saved prompt overrides it, resolves to the built-in prompt.
func (l *Library) Resolve(name string) (model.SavedPrompt, error) {
	if p, ok := l.Get(name); ok {
		return p, nil
	}
	if name == "" || name == DefaultName {
		return Default(), nil
	}
	return model.SavedPrompt{}, eris.Wrapf(model.ErrPromptNotFound, "prompts: %q", name)
}

// List returns all prompts ordered by creation time, then name.
func (l *Library) List() []model.SavedPrompt {
	l.mu.RLock()
	out := make([]model.SavedPrompt, 0, len(l.byName))
	for _, p := range l.byName {
		out = append(out, *p)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Names returns every saved prompt name.
func (l *Library) Names() []string {
	all := l.List()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	return names
}

// Len returns the number of saved prompts.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byName)
}
