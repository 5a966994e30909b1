package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite analysis store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the SQLite database at the given path and runs
// migrations. The file is readable by its owner only.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable and its tables exist.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("store: closed")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	return checkTables(ctx, s.db)
}

// Save inserts a record. A missing ID or creation time is filled in, and
// the row digest is computed; both are written back to r.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("store: invalid kind %q", r.Kind)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if len(r.Result) == 0 {
		r.Result = []byte("{}")
	}
	r.Digest = computeRecordDigest(r)

	var inputDigest []byte
	if r.InputDigest != ([32]byte{}) {
		inputDigest = r.InputDigest[:]
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, request_id, kind, created_ns, preview, family, cipher_key, confidence, classified, result, input_digest, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequestID, string(r.Kind), r.CreatedAt.UnixNano(), r.Preview, r.Family, r.Key,
		r.Confidence, r.Classified, string(r.Result), inputDigest, r.Digest[:],
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

const recordColumns = `id, request_id, kind, created_ns, preview, family, cipher_key, confidence, classified, result, input_digest, digest`

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM analyses WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &records[0], nil
}

// List returns records matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Family != "" {
		where = append(where, "family = ?")
		args = append(args, f.Family)
	}
	if !f.Before.IsZero() {
		where = append(where, "created_ns < ?")
		args = append(args, f.Before.UnixNano())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := `SELECT ` + recordColumns + ` FROM analyses`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_ns DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return scanRecords(rows)
}

// FindByInput returns the newest record of kind whose input had the given
// digest.
func (s *Store) FindByInput(ctx context.Context, kind Kind, digest [32]byte) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM analyses
		WHERE kind = ? AND input_digest = ?
		ORDER BY created_ns DESC LIMIT 1`, string(kind), digest[:])
	if err != nil {
		return nil, fmt.Errorf("find analysis: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	return n, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Prune deletes all but the newest keep records and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM analyses WHERE id NOT IN (
			SELECT id FROM analyses ORDER BY created_ns DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune analyses: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarises the stored records.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByKind:   make(map[Kind]int64),
		ByFamily: make(map[string]int64),
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_ns), MAX(created_ns),
		       COALESCE(SUM(CASE WHEN kind = ? AND classified = 0 THEN 1 ELSE 0 END), 0)
		FROM analyses`, string(KindClassify),
	).Scan(&st.Total, &oldest, &newest, &st.Unclassified)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64)
		st.Oldest = &t
	}
	if newest.Valid {
		t := time.Unix(0, newest.Int64)
		st.Newest = &t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM analyses GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("query kinds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan kind: %w", err)
		}
		st.ByKind[Kind(k)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kinds: %w", err)
	}

	frows, err := s.db.QueryContext(ctx, `
		SELECT family, COUNT(*) FROM analyses
		WHERE kind = ? AND family <> ''
		GROUP BY family`, string(KindClassify))
	if err != nil {
		return nil, fmt.Errorf("query families: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var f string
		var n int64
		if err := frows.Scan(&f, &n); err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		st.ByFamily[f] = n
	}
	if err := frows.Err(); err != nil {
		return nil, fmt.Errorf("iterate families: %w", err)
	}

	return st, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                   Record
			kind, result        string
			createdNs           int64
			requestID, preview  sql.NullString
			family, key         sql.NullString
			inputDigest, digest []byte
		)
		if err := rows.Scan(&r.ID, &requestID, &kind, &createdNs, &preview, &family, &key,
			&r.Confidence, &r.Classified, &result, &inputDigest, &digest); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		r.Kind = Kind(kind)
		r.CreatedAt = time.Unix(0, createdNs)
		r.RequestID = requestID.String
		r.Preview = preview.String
		r.Family = family.String
		r.Key = key.String
		r.Result = []byte(result)
		copy(r.InputDigest[:], inputDigest)
		copy(r.Digest[:], digest)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return records, nil
}
