package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/goleak"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractStructuredEntries(ctx context.Context, pdf []byte) ([]model.AuditEntry, error) {
	args := m.Called(ctx, pdf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEntry), args.Error(1)
}

func (m *mockExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	args := m.Called(ctx, pdf)
	return args.String(0), args.Error(1)
}

func newTestIngester(t *testing.T, opts Options) (*Ingester, *cases.Repository, *mockExtractor) {
	t.Helper()
	repo := cases.New(store.NewMemory())
	ex := new(mockExtractor)
	return New(repo, ex, opts), repo, ex
}

func buildXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Audit")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestGold_PDF(t *testing.T) {
	ing, repo, ex := newTestIngester(t, Options{})
	pdf := []byte("%PDF-1.7 audit")
	ex.On("ExtractStructuredEntries", mock.Anything, pdf).Return([]model.AuditEntry{
		{Identifier: "7654321", PrimaryCode: "N20.0", ProcedureCodes: []string{"52356"}},
		{Identifier: "", PrimaryCode: "I10"},
	}, nil)

	res, err := ing.Gold(context.Background(), File{Name: "audit-march.pdf", Data: pdf}, "urology")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, res.Sync.Durable())

	c, ok := repo.Get("7654321")
	require.True(t, ok)
	assert.Equal(t, model.CaseStatusTruthOnly, c.Status())
	assert.Equal(t, "urology", c.Specialty)
	assert.Equal(t, "audit-march.pdf", c.Metadata.GoldSource)
}

func TestGold_PDFParseFailureChangesNothing(t *testing.T) {
	ing, repo, ex := newTestIngester(t, Options{})
	ex.On("ExtractStructuredEntries", mock.Anything, mock.Anything).
		Return(nil, model.Tag(model.ErrExtractionParse, errors.New("invalid character 'T'"), "modelsvc"))

	_, err := ing.Gold(context.Background(), File{Name: "audit.PDF", Data: []byte("%PDF")}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrExtractionParse)
	assert.Zero(t, repo.Len())
}

func TestGold_XLSX(t *testing.T) {
	ing, repo, _ := newTestIngester(t, Options{})
	data := buildXLSX(t, [][]string{
		{"MRN", "Source File", "Primary Code", "Secondary Codes", "CPT", "Auditor Notes"},
		{"7654321", "note_7654321.pdf", "N20.0", "R31.9; E11.9", "52356, 74420", "stent"},
		{"", "", "", "", "", ""},
		{"1234567", "", "I10", "", "99214-25", ""},
	})

	res, err := ing.Gold(context.Background(), File{Name: "audit.xlsx", Data: data}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, 2, res.Applied)

	c, ok := repo.Get("7654321")
	require.True(t, ok)
	assert.Equal(t, []string{"R31.9", "E11.9"}, c.GroundTruth.SecondaryCodes)
	assert.Equal(t, []string{"52356", "74420"}, c.GroundTruth.ProcedureCodes)
	assert.Equal(t, "stent", c.GroundTruth.Notes)
	assert.Equal(t, "note_7654321.pdf", c.Metadata.GoldFileRef)

	c, ok = repo.Get("1234567")
	require.True(t, ok)
	assert.Equal(t, []string{"99214-25"}, c.GroundTruth.ProcedureCodes)
}

func TestParseGoldXLSX_MissingColumns(t *testing.T) {
	data := buildXLSX(t, [][]string{{"Name", "Codes"}, {"a", "b"}})
	_, err := ParseGoldXLSX(data)
	assert.ErrorContains(t, err, "missing identifier column")

	_, err = ParseGoldXLSX([]byte("not a zip"))
	assert.Error(t, err)
}

func TestGold_JSONAndUnsupported(t *testing.T) {
	ing, repo, _ := newTestIngester(t, Options{})
	data := []byte(`[{"identifier":"42","source_filename_reference":"","primary_code":"J06.9","secondary_codes":[],"procedure_codes":["99213"],"notes":""}]`)

	res, err := ing.Gold(context.Background(), File{Name: "entries.json", Data: data}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	_, ok := repo.Get("42")
	assert.True(t, ok)

	_, err = ing.Gold(context.Background(), File{Name: "entries.json", Data: []byte("{")}, "")
	assert.ErrorIs(t, err, model.ErrExtractionParse)

	_, err = ing.Gold(context.Background(), File{Name: "audit.docx"}, "")
	assert.ErrorContains(t, err, "unsupported gold file type")
}

func TestNotes_BatchIsolation(t *testing.T) {
	ing, repo, ex := newTestIngester(t, Options{Concurrency: 2})
	ex.On("ExtractText", mock.Anything, []byte("%PDF good")).Return("Medical Record Number: 7654321\nHPI...", nil)
	ex.On("ExtractText", mock.Anything, []byte("%PDF bad")).
		Return("", model.Tag(model.ErrUpstreamCall, errors.New("timeout"), "modelsvc"))

	out := ing.Notes(context.Background(), []File{
		{Name: "good.pdf", Data: []byte("%PDF good")},
		{Name: "bad.pdf", Data: []byte("%PDF bad")},
		{Name: "plain.txt", Data: []byte("Patient MRN: 1234567 seen today.")},
		{Name: "anon.txt", Data: []byte("No identifier here.")},
	})
	require.Len(t, out, 4)

	assert.True(t, out[0].OK)
	assert.Equal(t, "7654321", out[0].Key)
	assert.ErrorIs(t, out[1].Err, model.ErrUpstreamCall)
	assert.False(t, out[1].OK)
	assert.True(t, out[2].OK)
	assert.Equal(t, "1234567", out[2].Key)
	assert.False(t, out[3].OK)
	assert.ErrorIs(t, out[3].Err, model.ErrIdentifierNotFound)
	assert.Equal(t, "identifier_not_found", model.ErrorKind(out[3].Err))

	assert.Equal(t, 2, repo.Len())
}

func TestNoteText(t *testing.T) {
	ing, repo, _ := newTestIngester(t, Options{})
	o := ing.NoteText(context.Background(), "pasted", "id #42 follow-up")
	assert.True(t, o.OK)
	assert.Equal(t, "42", o.Key)
	c, _ := repo.Get("42")
	assert.Equal(t, model.CaseStatusNoteOnly, c.Status())

	o = ing.NoteText(context.Background(), "pasted", "nothing")
	assert.ErrorIs(t, o.Err, model.ErrIdentifierNotFound)
}

func TestNotePaths_ReadFailureIsAnOutcome(t *testing.T) {
	ing, _, _ := newTestIngester(t, Options{})
	dir := t.TempDir()
	good := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(good, []byte("MRN 7654321"), 0o644))

	out := ing.NotePaths(context.Background(), []string{filepath.Join(dir, "missing.txt"), good})
	require.Len(t, out, 2)
	assert.Equal(t, "missing.txt", out[0].File)
	assert.ErrorIs(t, out[0].Err, os.ErrNotExist)
	assert.True(t, out[1].OK)
	assert.Equal(t, "note.txt", out[1].File)
}

func TestDecodeText(t *testing.T) {
	// "Café" in windows-1252
	got, err := DecodeText([]byte{'C', 'a', 'f', 0xE9}, "windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "Café", got)

	got, err = DecodeText(append([]byte{0xEF, 0xBB, 0xBF}, "MRN: 1"...), "windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "MRN: 1", got)

	_, err = DecodeText([]byte("x"), "klingon")
	assert.Error(t, err)
}

func TestNote_Latin1Charset(t *testing.T) {
	ing, repo, _ := newTestIngester(t, Options{Charset: "iso-8859-1"})
	o := ing.Note(context.Background(), File{Name: "n.txt", Data: []byte("MRN: 7654321 Jos\xe9")})
	require.True(t, o.OK)
	c, _ := repo.Get("7654321")
	assert.Equal(t, "MRN: 7654321 José", c.RawText)
}
