package store

import (
	"context"

	"github.com/sells-group/coding-eval/internal/model"
)

// CaseFilter narrows ListCases. Zero values match everything.
type CaseFilter struct {
	Specialty string `json:"specialty,omitempty"`
}

// CasePatch is a partial case update. Nil fields are left unchanged.
type CasePatch struct {
	Specialty *string `json:"specialty,omitempty"`
}

// RunFilter specifies criteria for listing test runs.
type RunFilter struct {
	CaseKey    string `json:"case_key,omitempty"`
	PromptName string `json:"prompt_name,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// CaseStore persists cases keyed by record number. Upserts merge into the
// stored row the way ingestion merges in memory: an incoming case without
// ground truth or note text keeps the stored half, specialty is only filled
// when empty, metadata fields are merged, and created_at never changes.
type CaseStore interface {
	UpsertCase(ctx context.Context, c model.Case) error
	UpsertCases(ctx context.Context, cases []model.Case) error
	PatchCase(ctx context.Context, key string, patch CasePatch) error
	DeleteCase(ctx context.Context, key string) error
	ListCases(ctx context.Context, filter CaseFilter) ([]model.Case, error)
}

// RunStore persists immutable test runs. There is no update.
type RunStore interface {
	CreateTestRun(ctx context.Context, run model.TestRun) error
	ListTestRuns(ctx context.Context, filter RunFilter) ([]model.TestRun, error)
	DeleteTestRun(ctx context.Context, id string) error
}

// PromptStore persists saved prompts with upsert-by-name semantics.
type PromptStore interface {
	SavePrompt(ctx context.Context, p model.SavedPrompt) (model.SavedPrompt, error)
	ListPrompts(ctx context.Context) ([]model.SavedPrompt, error)
	DeletePrompt(ctx context.Context, id string) error
}

// SettingStore is a flat key-value store.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Store is the durable mirror behind the in-memory case repository, run
// ledger and prompt library. Deletes are idempotent; a missing row is not an
// error.
type Store interface {
	CaseStore
	RunStore
	PromptStore
	SettingStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// MergeCase applies the upsert merge rules to a stored case.
func MergeCase(stored, incoming model.Case) model.Case {
	out := incoming.Clone()
	out.CreatedAt = stored.CreatedAt
	if out.GroundTruth == nil && stored.GroundTruth != nil {
		gt := stored.GroundTruth.Clone()
		out.GroundTruth = &gt
	}
	if out.RawText == "" {
		out.RawText = stored.RawText
	}
	if stored.Specialty != "" {
		out.Specialty = stored.Specialty
	}
	if out.Metadata.GoldSource == "" {
		out.Metadata.GoldSource = stored.Metadata.GoldSource
	}
	if out.Metadata.GoldFileRef == "" {
		out.Metadata.GoldFileRef = stored.Metadata.GoldFileRef
	}
	if out.Metadata.NoteFilename == "" {
		out.Metadata.NoteFilename = stored.Metadata.NoteFilename
	}
	return out
}
