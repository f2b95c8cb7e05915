// Package regdata maintains a local copy of state corporation registry
// bulk data. The registry lookup pass resolves targets against this
// dataset offline instead of hitting a per-query API.
package regdata

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/model"
)

// Entity is one registered business entity.
type Entity struct {
	NameKey           string `json:"name_key"`
	LegalName         string `json:"legal_name"`
	State             string `json:"state"`
	Status            string `json:"status"`
	EntityType        string `json:"entity_type"`
	IncorporationYear int    `json:"incorporation_year"`
}

// Lookup resolves a business name (and optional state) to a registered
// entity. Implemented by Store; the registry adapter depends only on this.
type Lookup interface {
	Find(ctx context.Context, name, state string) (*Entity, error)
}

// Store is the SQLite-backed registry dataset.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the registry dataset at the given path.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "regdata: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "regdata: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS registry_entities (
	name_key           TEXT NOT NULL,
	legal_name         TEXT NOT NULL,
	state              TEXT NOT NULL,
	status             TEXT NOT NULL,
	entity_type        TEXT NOT NULL DEFAULT '',
	incorporation_year INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (name_key, state)
);

CREATE INDEX IF NOT EXISTS idx_registry_name ON registry_entities(name_key);
`

// Migrate creates the dataset schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "regdata: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces one entity row.
func (s *Store) Upsert(ctx context.Context, e Entity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_entities (name_key, legal_name, state, status, entity_type, incorporation_year)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name_key, state) DO UPDATE SET
		   legal_name = excluded.legal_name,
		   status = excluded.status,
		   entity_type = excluded.entity_type,
		   incorporation_year = excluded.incorporation_year`,
		e.NameKey, e.LegalName, e.State, e.Status, e.EntityType, e.IncorporationYear,
	)
	return eris.Wrapf(err, "regdata: upsert %s", e.NameKey)
}

// Count returns the number of loaded entities.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registry_entities`).Scan(&n)
	return n, eris.Wrap(err, "regdata: count")
}

// Find resolves a business name to a registered entity. When state is
// given the match is exact on (name, state); otherwise the first match by
// name wins.
func (s *Store) Find(ctx context.Context, name, state string) (*Entity, error) {
	nameKey := NameKey(name)

	query := `SELECT name_key, legal_name, state, status, entity_type, incorporation_year
	          FROM registry_entities WHERE name_key = ?`
	args := []any{nameKey}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, strings.ToUpper(state))
	}
	query += ` LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	var e Entity
	err := row.Scan(&e.NameKey, &e.LegalName, &e.State, &e.Status, &e.EntityType, &e.IncorporationYear)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "regdata: find")
	}
	return &e, nil
}

// NameKey normalizes a legal name for matching: the target key of the bare
// name with common corporate suffixes stripped.
func NameKey(name string) string {
	key := model.Target{Name: name}.Key()
	for _, suffix := range []string{"_incorporated", "_corporation", "_company", "_inc", "_llc", "_ltd", "_corp", "_co"} {
		if strings.HasSuffix(key, suffix) {
			key = strings.TrimSuffix(key, suffix)
			break
		}
	}
	return key
}
