package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/coding-eval/internal/model"
)

// MemoryStore is a non-durable Store for throwaway sessions and tests.
type MemoryStore struct {
	mu       sync.Mutex
	cases    map[string]model.Case
	caseSeq  []string
	runs     []model.TestRun
	prompts  map[string]model.SavedPrompt
	settings map[string]string
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		cases:    make(map[string]model.Case),
		prompts:  make(map[string]model.SavedPrompt),
		settings: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Migrate(context.Context) error { return nil }
func (m *MemoryStore) Ping(context.Context) error    { return nil }
func (m *MemoryStore) Close() error                  { return nil }

func (m *MemoryStore) UpsertCase(ctx context.Context, c model.Case) error {
	return m.UpsertCases(ctx, []model.Case{c})
}

func (m *MemoryStore) UpsertCases(_ context.Context, cases []model.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cases {
		if prev, ok := m.cases[c.Key]; ok {
			c = MergeCase(prev, c)
		} else {
			m.caseSeq = append(m.caseSeq, c.Key)
		}
		m.cases[c.Key] = c.Clone()
	}
	return nil
}

func (m *MemoryStore) PatchCase(_ context.Context, key string, patch CasePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[key]
	if !ok {
		return nil
	}
	if patch.Specialty != nil {
		c.Specialty = *patch.Specialty
	}
	c.UpdatedAt = time.Now().UTC()
	m.cases[key] = c
	return nil
}

func (m *MemoryStore) DeleteCase(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[key]; !ok {
		return nil
	}
	delete(m.cases, key)
	for i, k := range m.caseSeq {
		if k == key {
			m.caseSeq = append(m.caseSeq[:i], m.caseSeq[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) ListCases(_ context.Context, filter CaseFilter) ([]model.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Case
	for _, key := range m.caseSeq {
		c := m.cases[key]
		if filter.Specialty != "" && c.Specialty != filter.Specialty {
			continue
		}
		out = append(out, c.Clone())
	}
	return out, nil
}

// CreateTestRun keeps runs newest first.
func (m *MemoryStore) CreateTestRun(_ context.Context, run model.TestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Gold = run.Gold.Clone()
	m.runs = append([]model.TestRun{run}, m.runs...)
	sort.SliceStable(m.runs, func(i, j int) bool { return m.runs[i].CreatedAt.After(m.runs[j].CreatedAt) })
	return nil
}

func (m *MemoryStore) ListTestRuns(_ context.Context, filter RunFilter) ([]model.TestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TestRun
	for _, r := range m.runs {
		if filter.CaseKey != "" && r.CaseKey != filter.CaseKey {
			continue
		}
		if filter.PromptName != "" && r.PromptName != filter.PromptName {
			continue
		}
		out = append(out, r)
	}
	if filter.Limit > 0 {
		start := min(filter.Offset, len(out))
		end := min(start+filter.Limit, len(out))
		out = out[start:end]
	}
	return out, nil
}

func (m *MemoryStore) DeleteTestRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			m.runs = append(m.runs[:i], m.runs[i+1:]...)
			break
		}
	}
	return nil
}

// SavePrompt upserts by name, keeping the stored id and creation time.
func (m *MemoryStore) SavePrompt(_ context.Context, p model.SavedPrompt) (model.SavedPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := m.prompts[p.Name]; ok {
		prev.Text = p.Text
		prev.UpdatedAt = now
		m.prompts[p.Name] = prev
		return prev, nil
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.prompts[p.Name] = p
	return p, nil
}

func (m *MemoryStore) ListPrompts(context.Context) ([]model.SavedPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SavedPrompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) DeletePrompt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.prompts {
		if p.ID == id {
			delete(m.prompts, name)
			break
		}
	}
	return nil
}

func (m *MemoryStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *MemoryStore) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}
