package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

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
CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY,
	target_key   TEXT NOT NULL,
	attempted_at TIMESTAMPTZ NOT NULL,
	payload      JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS prospect_records (
	target_key TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	stage      TEXT NOT NULL,
	score      INT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_target ON attempts(target_key, attempted_at);
CREATE INDEX IF NOT EXISTS idx_records_stage ON prospect_records(stage);
CREATE INDEX IF NOT EXISTS idx_records_score ON prospect_records(score);
`

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

func (s *PostgresStore) RecordAttempt(ctx context.Context, a model.ProcessingAttempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attempt")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempts (id, target_key, attempted_at, payload) VALUES ($1, $2, $3, $4)`,
		a.ID, a.TargetKey, a.AttemptedAt.UTC(), payload,
	)
	return eris.Wrapf(err, "postgres: insert attempt for %s", a.TargetKey)
}

func (s *PostgresStore) History(ctx context.Context, targetKey string) ([]model.ProcessingAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM attempts WHERE target_key = $1 ORDER BY attempted_at ASC, id ASC`,
		targetKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query history")
	}
	defer rows.Close()

	var history []model.ProcessingAttempt
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		var a model.ProcessingAttempt
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attempt")
		}
		history = append(history, a)
	}
	return history, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func (s *PostgresStore) Status(ctx context.Context, targetKey string, knownPassIDs []int) (*model.AttemptStatus, error) {
	history, err := s.History(ctx, targetKey)
	if err != nil {
		return nil, err
	}
	return DeriveStatus(history, knownPassIDs), nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.ProspectRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO prospect_records (target_key, payload, stage, score, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (target_key) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   stage = EXCLUDED.stage,
		   score = EXCLUDED.score,
		   updated_at = EXCLUDED.updated_at`,
		rec.Target.Key(), payload, string(rec.Stage), rec.QualificationScore, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save record %s", rec.Target.Key())
}

func (s *PostgresStore) GetRecord(ctx context.Context, targetKey string) (*model.ProspectRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload FROM prospect_records WHERE target_key = $1`,
		targetKey,
	)
	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get record")
	}
	var rec model.ProspectRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ProspectRecord, error) {
	query := `SELECT payload FROM prospect_records WHERE ($1 = '' OR stage = $1) AND score >= $2
	          ORDER BY score DESC, target_key ASC LIMIT $3 OFFSET $4`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query, string(filter.Stage), filter.MinScore, limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ProspectRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		var rec model.ProspectRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}
