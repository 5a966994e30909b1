package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func classifyRecord(family string, classified bool, at time.Time) *Record {
	return &Record{
		RequestID:   "req-1",
		Kind:        KindClassify,
		CreatedAt:   at,
		InputDigest: InputDigest(KindClassify, "Khoor Zruog"),
		Preview:     "Khoor Zruog",
		Family:      family,
		Key:         "3",
		Confidence:  0.93,
		Classified:  classified,
		Result:      json.RawMessage(`{"top":"shift"}`),
	}
}

func TestOpenAndClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path = %q, want %q", s.Path(), dbPath)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("database permissions = %o, want 600", perm)
	}
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping on nil db should error")
	}
}

func TestMigrations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := s.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if sc.Version != SchemaVersion() || sc.Latest != SchemaVersion() {
		t.Errorf("schema v%d, latest v%d, want v%d", sc.Version, sc.Latest, SchemaVersion())
	}
	if sc.AppliedAt.IsZero() {
		t.Error("applied time not recorded")
	}

	// Migrating twice is a no-op.
	if err := migrate(ctx, s.db); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	// A database from a newer build is refused.
	if _, err := s.db.Exec("INSERT INTO schema_migrations (version, applied_ns) VALUES (?, 0)", SchemaVersion()+1); err != nil {
		t.Fatal(err)
	}
	if err := migrate(ctx, s.db); err == nil {
		t.Error("expected newer schema to be refused")
	}
}

func TestPingDetectsMissingTable(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := s.db.Exec("DROP TABLE analyses"); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("expected Ping to report the missing table")
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := classifyRecord("shift", true, time.Time{})
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if r.ID == "" {
		t.Fatal("Save did not assign an ID")
	}
	if r.CreatedAt.IsZero() {
		t.Fatal("Save did not set CreatedAt")
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != KindClassify || got.Family != "shift" || got.Key != "3" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Classified || got.Confidence != 0.93 {
		t.Errorf("classified/confidence mismatch: %v %v", got.Classified, got.Confidence)
	}
	if string(got.Result) != `{"top":"shift"}` {
		t.Errorf("Result = %s", got.Result)
	}
	if got.InputDigest != r.InputDigest {
		t.Error("InputDigest mismatch")
	}
	if got.CreatedAt.UnixNano() != r.CreatedAt.UnixNano() {
		t.Error("CreatedAt mismatch")
	}
	if err := VerifyRecord(got); err != nil {
		t.Errorf("VerifyRecord failed: %v", err)
	}
}

func TestSaveRejectsUnknownKind(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(context.Background(), &Record{Kind: "teleport"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSecretsHaveNoInput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := &Record{Kind: KindPassword, Result: json.RawMessage(`{"rating":"weak"}`)}
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var preview string
	var digest []byte
	if err := s.db.QueryRow(`SELECT preview, input_digest FROM analyses WHERE id = ?`, r.ID).Scan(&preview, &digest); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if preview != "" || digest != nil {
		t.Errorf("secret input leaked: preview %q, digest %x", preview, digest)
	}
}

func TestListAndFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	records := []*Record{
		classifyRecord("shift", true, base),
		classifyRecord("vigenere", true, base.Add(time.Minute)),
		classifyRecord("unclassified", false, base.Add(2*time.Minute)),
		{Kind: KindTransform, CreatedAt: base.Add(3 * time.Minute), Family: "affine"},
		{Kind: KindPIN, CreatedAt: base.Add(4 * time.Minute)},
	}
	for _, r := range records {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	if all[0].Kind != KindPIN {
		t.Errorf("expected newest first, got %s", all[0].Kind)
	}

	classify, err := s.List(ctx, Filter{Kind: KindClassify, Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(classify) != 2 || classify[0].Family != "unclassified" {
		t.Errorf("unexpected classify page: %d records", len(classify))
	}

	older, err := s.List(ctx, Filter{Kind: KindClassify, Before: classify[1].CreatedAt})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(older) != 1 || older[0].Family != "shift" {
		t.Errorf("unexpected second page: %+v", older)
	}

	byFamily, err := s.List(ctx, Filter{Family: "affine"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byFamily) != 1 || byFamily[0].Kind != KindTransform {
		t.Errorf("unexpected family filter result: %+v", byFamily)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 5 {
		t.Errorf("Count = %d, %v", n, err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Total != 5 || st.ByKind[KindClassify] != 3 || st.Unclassified != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.ByFamily["vigenere"] != 1 || st.ByFamily["affine"] != 0 {
		t.Errorf("unexpected family stats: %v", st.ByFamily)
	}
	if st.Oldest == nil || st.Newest == nil || !st.Oldest.Before(*st.Newest) {
		t.Errorf("unexpected time range: %v %v", st.Oldest, st.Newest)
	}
}

func TestFindByInput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := classifyRecord("shift", true, time.Time{})
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.FindByInput(ctx, KindClassify, InputDigest(KindClassify, "Khoor Zruog"))
	if err != nil {
		t.Fatalf("FindByInput failed: %v", err)
	}
	if got.ID != r.ID {
		t.Errorf("found %s, want %s", got.ID, r.ID)
	}

	_, err = s.FindByInput(ctx, KindClassify, InputDigest(KindClassify, "something else"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAndPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now()

	var ids []string
	for i := 0; i < 5; i++ {
		r := classifyRecord("shift", true, base.Add(time.Duration(i)*time.Second))
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, r.ID)
	}

	if err := s.Delete(ctx, ids[4]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, ids[4]); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}

	removed, err := s.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune removed %d, want 2", removed)
	}
	left, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(left) != 2 || left[0].ID != ids[3] || left[1].ID != ids[2] {
		t.Errorf("Prune kept the wrong records")
	}
}

func TestVerifyAllDetectsTampering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := classifyRecord("shift", true, time.Time{})
	b := classifyRecord("vigenere", true, time.Time{})
	for _, r := range []*Record{a, b} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	corrupted, err := s.VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll failed: %v", err)
	}
	if len(corrupted) != 0 {
		t.Fatalf("expected no corruption, got %v", corrupted)
	}

	if _, err := s.db.Exec(`UPDATE analyses SET cipher_key = '7' WHERE id = ?`, b.ID); err != nil {
		t.Fatalf("tamper failed: %v", err)
	}
	corrupted, err = s.VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll failed: %v", err)
	}
	if len(corrupted) != 1 || corrupted[0] != b.ID {
		t.Errorf("expected %s corrupted, got %v", b.ID, corrupted)
	}
}

func TestInputDigestSeparatesKinds(t *testing.T) {
	if InputDigest(KindClassify, "abc") == InputDigest(KindTransform, "abc") {
		t.Error("digests of different kinds should differ")
	}
	if InputDigest(KindClassify, "abc") != InputDigest(KindClassify, "abc") {
		t.Error("digest should be deterministic")
	}
}

func BenchmarkSave(b *testing.B) {
	s, err := Open(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Save(ctx, classifyRecord("shift", true, time.Time{})); err != nil {
			b.Fatalf("Save failed: %v", err)
		}
	}
}
