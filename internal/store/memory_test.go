package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coding-eval/internal/model"
)

func TestMemoryStore_Cases(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := goldCase("1")
	first.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.UpsertCases(ctx, []model.Case{first, goldCase("2")}))

	again := goldCase("1")
	again.CreatedAt = first.CreatedAt.Add(time.Hour)
	again.RawText = "MRN: 1"
	require.NoError(t, m.UpsertCase(ctx, again))

	specialty := "cardiology"
	require.NoError(t, m.PatchCase(ctx, "2", CasePatch{Specialty: &specialty}))
	require.NoError(t, m.PatchCase(ctx, "missing", CasePatch{Specialty: &specialty}))

	all, err := m.ListCases(ctx, CaseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].Key)
	assert.True(t, all[0].CreatedAt.Equal(first.CreatedAt))
	assert.Equal(t, model.CaseStatusComplete, all[0].Status())

	cardio, err := m.ListCases(ctx, CaseFilter{Specialty: "cardiology"})
	require.NoError(t, err)
	require.Len(t, cardio, 1)
	assert.Equal(t, "2", cardio[0].Key)

	require.NoError(t, m.DeleteCase(ctx, "1"))
	require.NoError(t, m.DeleteCase(ctx, "1"))
	all, _ = m.ListCases(ctx, CaseFilter{})
	assert.Len(t, all, 1)
}

func TestMemoryStore_RunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.CreateTestRun(ctx, testRun(id, "1", "P1", base.Add(time.Duration(i)*time.Second))))
	}

	runs, err := m.ListTestRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, runIDs(runs))

	page, err := m.ListTestRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, runIDs(page))

	require.NoError(t, m.DeleteTestRun(ctx, "b"))
	require.NoError(t, m.DeleteTestRun(ctx, "b"))
	runs, _ = m.ListTestRuns(ctx, RunFilter{})
	assert.Equal(t, []string{"c", "a"}, runIDs(runs))
}

func TestMemoryStore_PromptsAndSettings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p1, err := m.SavePrompt(ctx, model.SavedPrompt{Name: "Baseline", Text: "v1"})
	require.NoError(t, err)
	p2, err := m.SavePrompt(ctx, model.SavedPrompt{ID: "other", Name: "Baseline", Text: "v2"})
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, "v2", p2.Text)

	require.NoError(t, m.DeletePrompt(ctx, p1.ID))
	prompts, err := m.ListPrompts(ctx)
	require.NoError(t, err)
	assert.Empty(t, prompts)

	_, ok, err := m.GetSetting(ctx, model.SettingModel)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, m.PutSetting(ctx, model.SettingModel, "m"))
	v, ok, _ := m.GetSetting(ctx, model.SettingModel)
	assert.True(t, ok)
	assert.Equal(t, "m", v)
}

func runIDs(runs []model.TestRun) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}

func TestMemoryStore_UpsertKeepsStoredHalves(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertCase(ctx, goldCase("1")))
	require.NoError(t, m.UpsertCase(ctx, model.Case{Key: "1", RawText: "MRN: 1", Metadata: model.CaseMetadata{NoteFilename: "n.txt"}}))

	all, err := m.ListCases(ctx, CaseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.CaseStatusComplete, all[0].Status())
	assert.Equal(t, "urology", all[0].Specialty)
	assert.Equal(t, "audit-march.pdf", all[0].Metadata.GoldSource)
	assert.Equal(t, "n.txt", all[0].Metadata.NoteFilename)
}
