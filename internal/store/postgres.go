package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/coding-eval/internal/db"
	"github.com/sells-group/coding-eval/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries prepared on each new connection.
var preparedStatements = map[string]string{
	"upsert_case":     postgresUpsertCase,
	"insert_test_run": postgresInsertRun,
	"save_prompt":     postgresSavePrompt,
	"get_setting":     `SELECT value FROM settings WHERE key = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cases (
	key          TEXT PRIMARY KEY,
	specialty    TEXT NOT NULL DEFAULT '',
	ground_truth JSONB,
	raw_text     TEXT NOT NULL DEFAULT '',
	metadata     JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS test_runs (
	id          TEXT PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL,
	case_key    TEXT NOT NULL,
	model       TEXT NOT NULL,
	prompt_name TEXT NOT NULL,
	prompt_text TEXT NOT NULL,
	score       JSONB NOT NULL,
	predicted   JSONB NOT NULL,
	gold        JSONB NOT NULL,
	reasoning   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS saved_prompts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cases_specialty ON cases(specialty);
CREATE INDEX IF NOT EXISTS idx_test_runs_case_key ON test_runs(case_key);
CREATE INDEX IF NOT EXISTS idx_test_runs_prompt_name ON test_runs(prompt_name);
CREATE INDEX IF NOT EXISTS idx_test_runs_created_at ON test_runs(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Cases ---

// caseUpsertConfig merges case writes half by half: a row without ground
// truth or note text keeps the stored one, a stored specialty wins, metadata
// keys are merged and created_at is never overwritten.
var caseUpsertConfig = db.UpsertConfig{
	Table:        "cases",
	Columns:      []string{"key", "specialty", "ground_truth", "raw_text", "metadata", "created_at", "updated_at"},
	ConflictKeys: []string{"key"},
	UpdateCols:   []string{"specialty", "ground_truth", "raw_text", "metadata", "updated_at"},
	Merge: map[string]string{
		"specialty":    `COALESCE(NULLIF(cases.specialty, ''), EXCLUDED.specialty)`,
		"ground_truth": `COALESCE(EXCLUDED.ground_truth, cases.ground_truth)`,
		"raw_text":     `COALESCE(NULLIF(EXCLUDED.raw_text, ''), cases.raw_text)`,
		"metadata":     `cases.metadata || EXCLUDED.metadata`,
	},
}

var postgresUpsertCase = caseUpsertConfig.InsertSQL()

func (s *PostgresStore) UpsertCase(ctx context.Context, c model.Case) error {
	cols, err := encodeCase(c)
	if err != nil {
		return eris.Wrap(err, "postgres")
	}
	createdAt, updatedAt := caseTimes(c)
	_, err = s.pool.Exec(ctx, postgresUpsertCase,
		c.Key, c.Specialty, cols.GroundTruth, c.RawText, cols.Metadata, createdAt, updatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert case %s", c.Key)
}

// UpsertCases writes a single case directly and larger batches through
// COPY + merge.
func (s *PostgresStore) UpsertCases(ctx context.Context, cases []model.Case) error {
	switch len(cases) {
	case 0:
		return nil
	case 1:
		return s.UpsertCase(ctx, cases[0])
	}

	rows := make([][]any, 0, len(cases))
	for _, c := range cases {
		cols, err := encodeCase(c)
		if err != nil {
			return eris.Wrap(err, "postgres")
		}
		createdAt, updatedAt := caseTimes(c)
		rows = append(rows, []any{c.Key, c.Specialty, cols.GroundTruth, c.RawText, cols.Metadata, createdAt, updatedAt})
	}
	_, err := db.BulkUpsert(ctx, s.pool, caseUpsertConfig, rows)
	return eris.Wrap(err, "postgres: upsert cases")
}

func (s *PostgresStore) PatchCase(ctx context.Context, key string, patch CasePatch) error {
	if patch.Specialty == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE cases SET specialty = $1, updated_at = $2 WHERE key = $3`,
		*patch.Specialty, time.Now().UTC(), key,
	)
	return eris.Wrapf(err, "postgres: patch case %s", key)
}

func (s *PostgresStore) DeleteCase(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cases WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete case %s", key)
}

func (s *PostgresStore) ListCases(ctx context.Context, filter CaseFilter) ([]model.Case, error) {
	query := `SELECT key, specialty, ground_truth, raw_text, metadata, created_at, updated_at FROM cases`
	var args []any
	if filter.Specialty != "" {
		query += ` WHERE specialty = $1`
		args = append(args, filter.Specialty)
	}
	query += ` ORDER BY created_at, key`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cases")
	}
	defer rows.Close()

	var cases []model.Case
	for rows.Next() {
		var c model.Case
		var cols caseColumns
		if err := rows.Scan(&c.Key, &c.Specialty, &cols.GroundTruth, &c.RawText, &cols.Metadata, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan case")
		}
		if err := decodeCase(&c, cols); err != nil {
			return nil, eris.Wrap(err, "postgres")
		}
		cases = append(cases, c)
	}
	return cases, eris.Wrap(rows.Err(), "postgres: list cases iterate")
}

// --- Test runs ---

const postgresInsertRun = `INSERT INTO test_runs (id, created_at, case_key, model, prompt_name, prompt_text, score, predicted, gold, reasoning)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (s *PostgresStore) CreateTestRun(ctx context.Context, run model.TestRun) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres")
	}
	_, err = s.pool.Exec(ctx, postgresInsertRun,
		run.ID, run.CreatedAt.UTC(), run.CaseKey, run.Model, run.PromptName, run.PromptText,
		cols.Score, cols.Predicted, cols.Gold, run.Reasoning,
	)
	return eris.Wrapf(err, "postgres: insert test run %s", run.ID)
}

// ListTestRuns returns runs newest first.
func (s *PostgresStore) ListTestRuns(ctx context.Context, filter RunFilter) ([]model.TestRun, error) {
	query := `SELECT id, created_at, case_key, model, prompt_name, prompt_text, score, predicted, gold, reasoning FROM test_runs WHERE true`
	var args []any
	if filter.CaseKey != "" {
		args = append(args, filter.CaseKey)
		query += fmt.Sprintf(` AND case_key = $%d`, len(args))
	}
	if filter.PromptName != "" {
		args = append(args, filter.PromptName)
		query += fmt.Sprintf(` AND prompt_name = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(` OFFSET $%d`, len(args))
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list test runs")
	}
	defer rows.Close()

	var runs []model.TestRun
	for rows.Next() {
		var r model.TestRun
		var cols runColumns
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.CaseKey, &r.Model, &r.PromptName, &r.PromptText,
			&cols.Score, &cols.Predicted, &cols.Gold, &r.Reasoning); err != nil {
			return nil, eris.Wrap(err, "postgres: scan test run")
		}
		if err := decodeRun(&r, cols); err != nil {
			return nil, eris.Wrap(err, "postgres")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list test runs iterate")
}

func (s *PostgresStore) DeleteTestRun(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM test_runs WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete test run %s", id)
}

// --- Prompts ---

const postgresSavePrompt = `INSERT INTO saved_prompts (id, name, text, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE SET text = EXCLUDED.text, updated_at = EXCLUDED.updated_at
RETURNING id, name, text, created_at, updated_at`

// SavePrompt inserts a prompt or, when the name exists, overwrites its text
// while keeping the stored id and creation time.
func (s *PostgresStore) SavePrompt(ctx context.Context, p model.SavedPrompt) (model.SavedPrompt, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	var out model.SavedPrompt
	err := s.pool.QueryRow(ctx, postgresSavePrompt, p.ID, p.Name, p.Text, p.CreatedAt.UTC(), now).
		Scan(&out.ID, &out.Name, &out.Text, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return out, eris.Wrapf(err, "postgres: save prompt %q", p.Name)
	}
	return out, nil
}

func (s *PostgresStore) ListPrompts(ctx context.Context) ([]model.SavedPrompt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, text, created_at, updated_at FROM saved_prompts ORDER BY created_at, name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prompts")
	}
	defer rows.Close()

	var prompts []model.SavedPrompt
	for rows.Next() {
		var p model.SavedPrompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Text, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prompt")
		}
		prompts = append(prompts, p)
	}
	return prompts, eris.Wrap(rows.Err(), "postgres: list prompts iterate")
}

func (s *PostgresStore) DeletePrompt(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM saved_prompts WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete prompt %s", id)
}

// --- Settings ---

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, true, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put setting %s", key)
}
