package db

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "cases",
		Columns:      []string{"key", "raw_text"},
		ConflictKeys: []string{"key"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "cases",
		ConflictKeys: []string{"key"},
	}, [][]any{{"1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "cases",
		Columns: []string{"key", "raw_text"},
	}, [][]any{{"1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Columns:      []string{"key"},
		ConflictKeys: []string{"key"},
	}, [][]any{{"1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no table specified")
}

func TestUpsertConfig_SetClause(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "cases",
		Columns:      []string{"key", "ground_truth", "raw_text"},
		ConflictKeys: []string{"key"},
		Merge: map[string]string{
			"ground_truth": "COALESCE(EXCLUDED.ground_truth, cases.ground_truth)",
		},
	}
	assert.Equal(t,
		`"ground_truth" = COALESCE(EXCLUDED.ground_truth, cases.ground_truth), "raw_text" = EXCLUDED."raw_text"`,
		cfg.SetClause())

	cfg.UpdateCols = []string{"raw_text"}
	assert.Equal(t, `"raw_text" = EXCLUDED."raw_text"`, cfg.SetClause())
}

func TestUpsertConfig_InsertSQL(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "eval.cases",
		Columns:      []string{"key", "raw_text"},
		ConflictKeys: []string{"key"},
		Merge:        map[string]string{"raw_text": "COALESCE(NULLIF(EXCLUDED.raw_text, ''), cases.raw_text)"},
	}
	assert.Equal(t,
		`INSERT INTO "eval"."cases" ("key", "raw_text") VALUES ($1, $2) ON CONFLICT ("key") DO UPDATE SET "raw_text" = COALESCE(NULLIF(EXCLUDED.raw_text, ''), cases.raw_text)`,
		cfg.InsertSQL())
}

func TestBulkUpsert_CopiesThenMerges(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{{"1", "note a"}, {"2", "note b"}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_cases" \(LIKE "cases" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom([]string{"_tmp_upsert_cases"}, []string{"key", "raw_text"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "cases" \("key", "raw_text"\) SELECT "key", "raw_text" FROM "_tmp_upsert_cases" ON CONFLICT \("key"\) DO UPDATE SET "raw_text" = COALESCE\(NULLIF\(EXCLUDED.raw_text, ''\), cases.raw_text\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "cases",
		Columns:      []string{"key", "raw_text"},
		ConflictKeys: []string{"key"},
		Merge:        map[string]string{"raw_text": "COALESCE(NULLIF(EXCLUDED.raw_text, ''), cases.raw_text)"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("conn refused"))

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "cases",
		Columns:      []string{"key"},
		ConflictKeys: []string{"key"},
	}, [][]any{{"1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"cases"`, sanitizeTable("cases"))
	assert.Equal(t, `"eval"."cases"`, sanitizeTable("eval.cases"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"key", "specialty", "raw_text"`, quoteAndJoin([]string{"key", "specialty", "raw_text"}))
}
