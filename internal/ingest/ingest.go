// Package ingest turns gold-standard audits and clinical notes on disk into
// cases.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/model"
)

const defaultConcurrency = 4

// Extractor is the model capability used to read PDFs.
type Extractor interface {
	ExtractStructuredEntries(ctx context.Context, pdf []byte) ([]model.AuditEntry, error)
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// Options configures an Ingester.
type Options struct {
	// Charset of plain-text notes, as an HTML encoding label. Default utf-8.
	Charset     string
	Concurrency int
}

// File is one uploaded or on-disk document.
type File struct {
	Name string
	Data []byte
}

// ReadFile loads path into a File named by its base name.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, eris.Wrapf(err, "ingest: read %s", path)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// Ingester feeds documents into the case repository.
type Ingester struct {
	repo      *cases.Repository
	extractor Extractor
	opts      Options
}

// New creates an Ingester.
func New(repo *cases.Repository, ex Extractor, opts Options) *Ingester {
	if opts.Charset == "" {
		opts.Charset = "utf-8"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Ingester{repo: repo, extractor: ex, opts: opts}
}

// GoldResult reports one gold-standard import.
type GoldResult struct {
	Source  string     `json:"source"`
	Entries int        `json:"entries"`
	Applied int        `json:"applied"`
	Sync    model.Sync `json:"sync"`
}

// Gold imports the audit entries in f. PDFs go through model extraction;
// .xlsx and .json files are parsed locally. Nothing is ingested when the
// document cannot be parsed.
func (i *Ingester) Gold(ctx context.Context, f File, specialty string) (GoldResult, error) {
	var (
		entries []model.AuditEntry
		err     error
	)
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".pdf":
		entries, err = i.extractor.ExtractStructuredEntries(ctx, f.Data)
	case ".xlsx":
		entries, err = ParseGoldXLSX(f.Data)
	case ".json":
		entries, err = parseGoldJSON(f.Data)
	default:
		err = eris.Errorf("ingest: unsupported gold file type %q", filepath.Ext(f.Name))
	}
	if err != nil {
		return GoldResult{Source: f.Name}, eris.Wrapf(err, "ingest: gold %s", f.Name)
	}
	return i.GoldEntries(ctx, f.Name, entries, specialty), nil
}

// GoldEntries merges already-extracted entries.
func (i *Ingester) GoldEntries(ctx context.Context, source string, entries []model.AuditEntry, specialty string) GoldResult {
	applied, synced := i.repo.IngestGold(ctx, entries, source, specialty)
	zap.L().Info("ingest: gold imported",
		zap.String("source", source),
		zap.Int("entries", len(entries)),
		zap.Int("applied", applied),
	)
	return GoldResult{Source: source, Entries: len(entries), Applied: applied, Sync: synced}
}

func parseGoldJSON(data []byte) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, model.Tag(model.ErrExtractionParse, err, "ingest: gold json")
	}
	return entries, nil
}

// NoteOutcome is the result for one note. A note without an identifier is a
// normal outcome: OK is false and Err wraps model.ErrIdentifierNotFound.
type NoteOutcome struct {
	File string     `json:"file"`
	OK   bool       `json:"ok"`
	Key  string     `json:"key,omitempty"`
	Sync model.Sync `json:"sync"`
	Err  error      `json:"-"`
}

// Note ingests a single clinical note. PDFs are transcribed by the model;
// anything else is decoded as text in the configured charset.
func (i *Ingester) Note(ctx context.Context, f File) NoteOutcome {
	out := NoteOutcome{File: f.Name}

	text, err := i.noteText(ctx, f)
	if err != nil {
		out.Err = eris.Wrapf(err, "ingest: note %s", f.Name)
		return out
	}

	res := i.repo.IngestNote(ctx, text, f.Name)
	if !res.OK {
		out.Err = eris.Wrapf(model.ErrIdentifierNotFound, "ingest: note %s", f.Name)
		return out
	}
	out.OK, out.Key, out.Sync = true, res.Key, res.Sync
	return out
}

// NoteText ingests note text that is already decoded, e.g. pasted by an
// operator.
func (i *Ingester) NoteText(ctx context.Context, name, text string) NoteOutcome {
	res := i.repo.IngestNote(ctx, text, name)
	if !res.OK {
		return NoteOutcome{File: name, Err: eris.Wrapf(model.ErrIdentifierNotFound, "ingest: note %s", name)}
	}
	return NoteOutcome{File: name, OK: true, Key: res.Key, Sync: res.Sync}
}

// Notes ingests many notes with bounded concurrency. A failing file never
// aborts the batch; outcomes are returned in input order.
func (i *Ingester) Notes(ctx context.Context, files []File) []NoteOutcome {
	out := make([]NoteOutcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Concurrency)
	for idx, f := range files {
		g.Go(func() error {
			out[idx] = i.Note(gctx, f)
			return nil
		})
	}
	_ = g.Wait()

	var ok int
	for _, o := range out {
		if o.OK {
			ok++
		}
	}
	zap.L().Info("ingest: notes batch finished", zap.Int("files", len(files)), zap.Int("linked", ok))
	return out
}

// NotePaths reads and ingests every path. Read failures become outcomes.
func (i *Ingester) NotePaths(ctx context.Context, paths []string) []NoteOutcome {
	var (
		files   []File
		index   []int
		results = make([]NoteOutcome, len(paths))
	)
	for idx, p := range paths {
		f, err := ReadFile(p)
		if err != nil {
			results[idx] = NoteOutcome{File: filepath.Base(p), Err: err}
			continue
		}
		files = append(files, f)
		index = append(index, idx)
	}
	for j, o := range i.Notes(ctx, files) {
		results[index[j]] = o
	}
	return results
}

func (i *Ingester) noteText(ctx context.Context, f File) (string, error) {
	if strings.EqualFold(filepath.Ext(f.Name), ".pdf") {
		return i.extractor.ExtractText(ctx, f.Data)
	}
	return DecodeText(f.Data, i.opts.Charset)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText converts data in the named charset to a UTF-8 string.
func DecodeText(data []byte, charset string) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(data[len(utf8BOM):]), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: unsupported charset %q", charset)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: decode %s", charset)
	}
	return string(out), nil
}
