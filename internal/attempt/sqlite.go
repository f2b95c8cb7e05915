package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/model"
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY,
	target_key   TEXT NOT NULL,
	attempted_at DATETIME NOT NULL,
	payload      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prospect_records (
	target_key TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	score      INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_target ON attempts(target_key, attempted_at);
CREATE INDEX IF NOT EXISTS idx_records_stage ON prospect_records(stage);
CREATE INDEX IF NOT EXISTS idx_records_score ON prospect_records(score);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordAttempt appends one immutable attempt row. Existing rows are never
// updated or deleted.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, a model.ProcessingAttempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attempt")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, target_key, attempted_at, payload) VALUES (?, ?, ?, ?)`,
		a.ID, a.TargetKey, a.AttemptedAt.UTC(), string(payload),
	)
	return eris.Wrapf(err, "sqlite: insert attempt for %s", a.TargetKey)
}

func (s *SQLiteStore) History(ctx context.Context, targetKey string) ([]model.ProcessingAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM attempts WHERE target_key = ? ORDER BY attempted_at ASC, id ASC`,
		targetKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query history")
	}
	defer rows.Close()

	var history []model.ProcessingAttempt
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		var a model.ProcessingAttempt
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal attempt")
		}
		history = append(history, a)
	}
	return history, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func (s *SQLiteStore) Status(ctx context.Context, targetKey string, knownPassIDs []int) (*model.AttemptStatus, error) {
	history, err := s.History(ctx, targetKey)
	if err != nil {
		return nil, err
	}
	return DeriveStatus(history, knownPassIDs), nil
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.ProspectRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prospect_records (target_key, payload, stage, score, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(target_key) DO UPDATE SET
		   payload = excluded.payload,
		   stage = excluded.stage,
		   score = excluded.score,
		   updated_at = excluded.updated_at`,
		rec.Target.Key(), string(payload), string(rec.Stage), rec.QualificationScore, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save record %s", rec.Target.Key())
}

func (s *SQLiteStore) GetRecord(ctx context.Context, targetKey string) (*model.ProspectRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM prospect_records WHERE target_key = ?`,
		targetKey,
	)
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get record")
	}
	var rec model.ProspectRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ProspectRecord, error) {
	query := `SELECT payload FROM prospect_records WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY score DESC, target_key ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.ProspectRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		var rec model.ProspectRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}
