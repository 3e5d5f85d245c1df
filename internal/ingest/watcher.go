package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// noteExts are the inbox file types ingested as notes.
var noteExts = map[string]bool{".pdf": true, ".txt": true}

// Watcher ingests notes dropped into an inbox directory. Rapid successive
// writes to one file are coalesced: a file is ingested once it has been
// quiet for the debounce window.
type Watcher struct {
	ing      *Ingester
	dir      string
	debounce time.Duration
	onResult func(NoteOutcome)

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a Watcher for dir. onResult, if non-nil, receives every
// outcome.
func NewWatcher(ing *Ingester, dir string, debounce time.Duration, onResult func(NoteOutcome)) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		ing:      ing,
		dir:      dir,
		debounce: debounce,
		onResult: onResult,
		pending:  make(map[string]time.Time),
	}
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrapf(err, "ingest: create inbox %s", w.dir)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "ingest: create watcher")
	}
	defer fw.Close() //nolint:errcheck

	if err := fw.Add(w.dir); err != nil {
		return eris.Wrapf(err, "ingest: watch %s", w.dir)
	}
	zap.L().Info("ingest: watching inbox", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	tick := max(w.debounce/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("ingest: watcher error", zap.Error(err))

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !noteExts[strings.ToLower(filepath.Ext(ev.Name))] || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// flush ingests files that have settled past the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		f, err := ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			w.report(NoteOutcome{File: filepath.Base(path), Err: err})
			continue
		}
		w.report(w.ing.Note(ctx, f))
	}
}

func (w *Watcher) report(o NoteOutcome) {
	if o.Err != nil {
		zap.L().Warn("ingest: inbox file not linked", zap.String("file", o.File), zap.Error(o.Err))
	} else {
		zap.L().Info("ingest: inbox file linked", zap.String("file", o.File), zap.String("case", o.Key))
	}
	if w.onResult != nil {
		w.onResult(o)
	}
}
