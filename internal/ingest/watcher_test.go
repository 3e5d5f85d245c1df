package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coding-eval/internal/model"
)

func startWatcher(t *testing.T, ing *Ingester, dir string) (<-chan NoteOutcome, func()) {
	t.Helper()
	results := make(chan NoteOutcome, 16)
	w := NewWatcher(ing, dir, 50*time.Millisecond, func(o NoteOutcome) { results <- o })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return results, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func waitOutcome(t *testing.T, ch <-chan NoteOutcome) NoteOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbox outcome")
		return NoteOutcome{}
	}
}

func TestWatcher_IngestsDroppedNotes(t *testing.T) {
	ing, repo, _ := newTestIngester(t, Options{})
	dir := filepath.Join(t.TempDir(), "inbox")
	results, stop := startWatcher(t, ing, dir)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note_7654321.txt"), []byte("MRN: 7654321\nRenal colic."), 0o644))
	o := waitOutcome(t, results)
	assert.True(t, o.OK)
	assert.Equal(t, "note_7654321.txt", o.File)
	assert.Equal(t, "7654321", o.Key)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "anon.txt"), []byte("no record number"), 0o644))
	o = waitOutcome(t, results)
	assert.False(t, o.OK)
	assert.ErrorIs(t, o.Err, model.ErrIdentifierNotFound)

	c, ok := repo.Get("7654321")
	require.True(t, ok)
	assert.Equal(t, "note_7654321.txt", c.Metadata.NoteFilename)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	ing, repo, _ := newTestIngester(t, Options{})
	dir := t.TempDir()
	results, stop := startWatcher(t, ing, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "audit.xlsx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("MRN: 1"), 0o644))

	select {
	case o := <-results:
		t.Fatalf("unexpected outcome for %s", o.File)
	case <-time.After(300 * time.Millisecond):
	}
	stop()
	assert.Zero(t, repo.Len())
}

func TestWatcher_Debounces(t *testing.T) {
	ing, _, _ := newTestIngester(t, Options{})
	dir := t.TempDir()
	results, stop := startWatcher(t, ing, dir)
	defer stop()

	path := filepath.Join(dir, "note.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = f.WriteString("MRN: ")
	require.NoError(t, err)
	_, err = f.WriteString("7654321")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	o := waitOutcome(t, results)
	assert.Equal(t, "7654321", o.Key)

	select {
	case extra := <-results:
		t.Fatalf("file ingested twice: %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}
