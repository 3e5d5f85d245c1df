package prompts

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "prompts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// downStore fails every prompt and setting call.
type downStore struct{}

var errDown = errors.New("database is locked")

func (downStore) SavePrompt(context.Context, model.SavedPrompt) (model.SavedPrompt, error) {
	return model.SavedPrompt{}, errDown
}
func (downStore) ListPrompts(context.Context) ([]model.SavedPrompt, error) { return nil, errDown }
func (downStore) DeletePrompt(context.Context, string) error              { return errDown }
func (downStore) GetSetting(context.Context, string) (string, bool, error) {
	return "", false, errDown
}
func (downStore) PutSetting(context.Context, string, string) error { return errDown }

func TestSave_UpsertKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	lib := New(newTestStore(t))
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lib.now = func() time.Time { return clock }

	first, synced, err := lib.Save(ctx, "Baseline", "v1")
	require.NoError(t, err)
	assert.True(t, synced.Durable())
	require.NotEmpty(t, first.ID)

	clock = clock.Add(time.Hour)
	second, synced, err := lib.Save(ctx, "Baseline", "v2")
	require.NoError(t, err)
	assert.True(t, synced.Durable())
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, "v2", second.Text)
	assert.Equal(t, 1, lib.Len())

	got, ok := lib.Get("Baseline")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Text)
}

func TestSave_RequiresName(t *testing.T) {
	lib := New(newTestStore(t))
	_, _, err := lib.Save(context.Background(), "  ", "text")
	assert.Error(t, err)
	assert.Equal(t, 0, lib.Len())
}

func TestSave_LocalOnly(t *testing.T) {
	lib := New(downStore{})
	p, synced, err := lib.Save(context.Background(), "Draft", "text")
	require.NoError(t, err)
	assert.False(t, synced.Durable())
	assert.ErrorIs(t, synced.Err, errDown)

	got, ok := lib.Get("Draft")
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	lib := New(newTestStore(t))
	p, _, err := lib.Save(ctx, "Temp", "x")
	require.NoError(t, err)

	assert.True(t, lib.Delete(ctx, p.ID).Durable())
	_, ok := lib.Get("Temp")
	assert.False(t, ok)

	// idempotent
	assert.True(t, lib.Delete(ctx, p.ID).Durable())
	assert.True(t, lib.Delete(ctx, "missing").Durable())
}

func TestLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	lib := New(st)
	_, _, err := lib.Save(ctx, "A", "alpha")
	require.NoError(t, err)
	_, _, err = lib.Save(ctx, "B", "beta")
	require.NoError(t, err)

	reloaded := New(st)
	require.NoError(t, reloaded.Load(ctx))
	assert.ElementsMatch(t, []string{"A", "B"}, reloaded.Names())
	b, ok := reloaded.Get("B")
	require.True(t, ok)
	assert.Equal(t, "beta", b.Text)
}

func TestLoad_StoreDown(t *testing.T) {
	err := New(downStore{}).Load(context.Background())
	assert.ErrorIs(t, err, errDown)
}

func TestList_OrderedByCreation(t *testing.T) {
	ctx := context.Background()
	lib := New(newTestStore(t))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"Zeta", "Alpha", "Mid"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		lib.now = func() time.Time { return ts }
		_, _, err := lib.Save(ctx, name, name)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, lib.Names())
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	lib := New(newTestStore(t))

	p, err := lib.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, p.Name)
	assert.Equal(t, DefaultText, p.Text)

	_, err = lib.Resolve("Nope")
	assert.ErrorIs(t, err, model.ErrPromptNotFound)

	_, _, err = lib.Save(ctx, DefaultName, "custom default")
	require.NoError(t, err)
	p, err = lib.Resolve(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "custom default", p.Text)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := New(newTestStore(t))
	_, _, err := src.Save(ctx, "Baseline", "line one\nline two")
	require.NoError(t, err)
	_, _, err = src.Save(ctx, "Improved v1", "better")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))
	assert.Contains(t, buf.String(), "prompts:")
	assert.Contains(t, buf.String(), "name: Baseline")

	dst := New(newTestStore(t))
	_, _, err = dst.Save(ctx, "Baseline", "old")
	require.NoError(t, err)
	before, _ := dst.Get("Baseline")

	n, synced, err := dst.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, synced.Durable())

	after, ok := dst.Get("Baseline")
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "line one\nline two", after.Text)
	_, ok = dst.Get("Improved v1")
	assert.True(t, ok)
}

func TestImport_Invalid(t *testing.T) {
	lib := New(newTestStore(t))
	_, _, err := lib.Import(context.Background(), strings.NewReader("prompts: [unclosed"))
	assert.Error(t, err)

	n, _, err := lib.Import(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImport_LocalOnly(t *testing.T) {
	lib := New(downStore{})
	n, synced, err := lib.Import(context.Background(), strings.NewReader("prompts:\n  - name: A\n    text: a\n  - name: ''\n    text: skipped\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, synced.Durable())
}
