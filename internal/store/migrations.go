package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one forward step of the history schema.
type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{1, "analyses table", `
CREATE TABLE IF NOT EXISTS analyses (
    id              TEXT PRIMARY KEY,
    request_id      TEXT,
    kind            TEXT NOT NULL,
    created_ns      INTEGER NOT NULL,
    preview         TEXT,
    family          TEXT,
    cipher_key      TEXT,
    confidence      REAL NOT NULL DEFAULT 0,
    classified      INTEGER NOT NULL DEFAULT 0,
    result          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_ns);
CREATE INDEX IF NOT EXISTS idx_analyses_kind ON analyses(kind, created_ns);
CREATE INDEX IF NOT EXISTS idx_analyses_family ON analyses(family, created_ns);
`},
	{2, "input and row digests", `
ALTER TABLE analyses ADD COLUMN input_digest BLOB;
ALTER TABLE analyses ADD COLUMN digest BLOB;
CREATE INDEX IF NOT EXISTS idx_analyses_input ON analyses(input_digest);
`},
}

// SchemaVersion is the schema this build writes.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// migrate brings db up to SchemaVersion, one transaction per step. A
// database written by a newer build is refused.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_ns  INTEGER NOT NULL,
			description TEXT
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > SchemaVersion() {
		return fmt.Errorf("history schema v%d is newer than this build (v%d)", current, SchemaVersion())
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_ns, description) VALUES (?, ?, ?)",
		m.version, time.Now().UnixNano(), m.description,
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}

func appliedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Schema describes the history database layout.
type Schema struct {
	Version   int       `json:"version"`
	Latest    int       `json:"latest"`
	AppliedAt time.Time `json:"applied_at"`
}

// Schema reports the applied schema version.
func (s *Store) Schema(ctx context.Context) (*Schema, error) {
	sc := &Schema{Latest: SchemaVersion()}
	var ns sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0), MAX(applied_ns) FROM schema_migrations",
	).Scan(&sc.Version, &ns)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if ns.Valid {
		sc.AppliedAt = time.Unix(0, ns.Int64)
	}
	return sc, nil
}

// checkTables confirms the history tables exist.
func checkTables(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"analyses", "schema_migrations"} {
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&n); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if n == 0 {
			return fmt.Errorf("store: missing table %s", table)
		}
	}
	return nil
}
