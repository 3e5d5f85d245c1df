package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/coding-eval/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cases (
	key          TEXT PRIMARY KEY,
	specialty    TEXT NOT NULL DEFAULT '',
	ground_truth TEXT,
	raw_text     TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS test_runs (
	id          TEXT PRIMARY KEY,
	created_at  DATETIME NOT NULL,
	case_key    TEXT NOT NULL,
	model       TEXT NOT NULL,
	prompt_name TEXT NOT NULL,
	prompt_text TEXT NOT NULL,
	score       TEXT NOT NULL,
	predicted   TEXT NOT NULL,
	gold        TEXT NOT NULL,
	reasoning   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS saved_prompts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	text       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_cases_specialty ON cases(specialty);
CREATE INDEX IF NOT EXISTS idx_test_runs_case_key ON test_runs(case_key);
CREATE INDEX IF NOT EXISTS idx_test_runs_prompt_name ON test_runs(prompt_name);
CREATE INDEX IF NOT EXISTS idx_test_runs_created_at ON test_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Cases ---

const sqliteUpsertCase = `
INSERT INTO cases (key, specialty, ground_truth, raw_text, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	specialty = CASE WHEN cases.specialty = '' THEN excluded.specialty ELSE cases.specialty END,
	ground_truth = COALESCE(excluded.ground_truth, cases.ground_truth),
	raw_text = CASE WHEN excluded.raw_text = '' THEN cases.raw_text ELSE excluded.raw_text END,
	metadata = json_patch(cases.metadata, excluded.metadata),
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertCase(ctx context.Context, c model.Case) error {
	return s.UpsertCases(ctx, []model.Case{c})
}

// UpsertCases writes all cases in one transaction.
func (s *SQLiteStore) UpsertCases(ctx context.Context, cases []model.Case) error {
	if len(cases) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert cases")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertCase)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert case")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range cases {
		cols, err := encodeCase(c)
		if err != nil {
			return eris.Wrap(err, "sqlite")
		}
		createdAt, updatedAt := caseTimes(c)
		if _, err := stmt.ExecContext(ctx,
			c.Key, c.Specialty, nullableText(cols.GroundTruth), c.RawText, string(cols.Metadata), createdAt, updatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert case %s", c.Key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert cases")
}

func (s *SQLiteStore) PatchCase(ctx context.Context, key string, patch CasePatch) error {
	if patch.Specialty == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE cases SET specialty = ?, updated_at = ? WHERE key = ?`,
		*patch.Specialty, time.Now().UTC(), key,
	)
	return eris.Wrapf(err, "sqlite: patch case %s", key)
}

func (s *SQLiteStore) DeleteCase(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cases WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete case %s", key)
}

func (s *SQLiteStore) ListCases(ctx context.Context, filter CaseFilter) ([]model.Case, error) {
	query := `SELECT key, specialty, ground_truth, raw_text, metadata, created_at, updated_at FROM cases WHERE 1=1`
	var args []any
	if filter.Specialty != "" {
		query += ` AND specialty = ?`
		args = append(args, filter.Specialty)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cases")
	}
	defer rows.Close() //nolint:errcheck

	var cases []model.Case
	for rows.Next() {
		c, err := scanSQLiteCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, eris.Wrap(rows.Err(), "sqlite: list cases iterate")
}

func scanSQLiteCase(row scannable) (model.Case, error) {
	var c model.Case
	var gt sql.NullString
	var meta string
	if err := row.Scan(&c.Key, &c.Specialty, &gt, &c.RawText, &meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, eris.Wrap(err, "sqlite: scan case")
	}
	cols := caseColumns{Metadata: []byte(meta)}
	if gt.Valid {
		cols.GroundTruth = []byte(gt.String)
	}
	return c, eris.Wrap(decodeCase(&c, cols), "sqlite")
}

// --- Test runs ---

func (s *SQLiteStore) CreateTestRun(ctx context.Context, run model.TestRun) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO test_runs (id, created_at, case_key, model, prompt_name, prompt_text, score, predicted, gold, reasoning)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC(), run.CaseKey, run.Model, run.PromptName, run.PromptText,
		string(cols.Score), string(cols.Predicted), string(cols.Gold), run.Reasoning,
	)
	return eris.Wrapf(err, "sqlite: insert test run %s", run.ID)
}

// ListTestRuns returns runs newest first.
func (s *SQLiteStore) ListTestRuns(ctx context.Context, filter RunFilter) ([]model.TestRun, error) {
	query := `SELECT id, created_at, case_key, model, prompt_name, prompt_text, score, predicted, gold, reasoning FROM test_runs WHERE 1=1`
	var args []any
	if filter.CaseKey != "" {
		query += ` AND case_key = ?`
		args = append(args, filter.CaseKey)
	}
	if filter.PromptName != "" {
		query += ` AND prompt_name = ?`
		args = append(args, filter.PromptName)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list test runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.TestRun
	for rows.Next() {
		var r model.TestRun
		var score, pred, gold string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.CaseKey, &r.Model, &r.PromptName, &r.PromptText,
			&score, &pred, &gold, &r.Reasoning); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan test run")
		}
		if err := decodeRun(&r, runColumns{Score: []byte(score), Predicted: []byte(pred), Gold: []byte(gold)}); err != nil {
			return nil, eris.Wrap(err, "sqlite")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list test runs iterate")
}

func (s *SQLiteStore) DeleteTestRun(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM test_runs WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete test run %s", id)
}

// --- Prompts ---

// SavePrompt inserts a prompt or, when the name exists, overwrites its text
// while keeping the stored id and creation time.
func (s *SQLiteStore) SavePrompt(ctx context.Context, p model.SavedPrompt) (model.SavedPrompt, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO saved_prompts (id, name, text, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at
		 RETURNING id, name, text, created_at, updated_at`,
		p.ID, p.Name, p.Text, p.CreatedAt.UTC(), now,
	)
	var out model.SavedPrompt
	if err := row.Scan(&out.ID, &out.Name, &out.Text, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return out, eris.Wrapf(err, "sqlite: save prompt %q", p.Name)
	}
	return out, nil
}

func (s *SQLiteStore) ListPrompts(ctx context.Context) ([]model.SavedPrompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, text, created_at, updated_at FROM saved_prompts ORDER BY created_at, name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prompts")
	}
	defer rows.Close() //nolint:errcheck

	var prompts []model.SavedPrompt
	for rows.Next() {
		var p model.SavedPrompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Text, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prompt")
		}
		prompts = append(prompts, p)
	}
	return prompts, eris.Wrap(rows.Err(), "sqlite: list prompts iterate")
}

func (s *SQLiteStore) DeletePrompt(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM saved_prompts WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete prompt %s", id)
}

// --- Settings ---

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return value, true, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put setting %s", key)
}

// helpers

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func caseTimes(c model.Case) (time.Time, time.Time) {
	now := time.Now().UTC()
	createdAt, updatedAt := c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	if c.CreatedAt.IsZero() {
		createdAt = now
	}
	if c.UpdatedAt.IsZero() {
		updatedAt = now
	}
	return createdAt, updatedAt
}
