package db_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/db"
)

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:db_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	conn, err := db.OpenDSN(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenDSN: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ── Migrations ───────────────────────────────────────────────────────────────

func TestMigrate_Idempotent(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, conn); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	v, err := db.CurrentVersion(ctx, conn)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("expected schema version 1, got %d", v)
	}

	var n int
	if err := conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM schema_migrations`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 migration row, got %d", n)
	}
}

func TestMigrate_AttendanceUniquePerDay(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if _, err := conn.ExecContext(ctx, `
INSERT INTO subjects(subject_id, enabled, created_at_ms, updated_at_ms) VALUES ('s1', 1, 0, 0);`); err != nil {
		t.Fatalf("seed subject: %v", err)
	}

	insert := `
INSERT INTO attendance_records(subject_id, date, check_in_at_ms, check_in_lat, check_in_lon,
  check_in_accuracy_m, created_at_ms, updated_at_ms)
VALUES ('s1', '2026-03-02', 1, 0, 0, 5, 1, 1);`
	if _, err := conn.ExecContext(ctx, insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := conn.ExecContext(ctx, insert); err == nil {
		t.Fatal("expected unique violation on second insert for the same day")
	}
}

// ── Worker ───────────────────────────────────────────────────────────────────

func TestWorker_RollsBackOnError(t *testing.T) {
	conn := openMemory(t)
	w := db.NewWorker(conn)
	defer w.Close()
	ctx := context.Background()

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO settings(key, value, updated_at_ms) VALUES ('k', 'v', 0)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM settings`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}
}

func TestWorker_DoAfterClose(t *testing.T) {
	conn := openMemory(t)
	w := db.NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sqlx.Tx) error { return nil })
	if !errors.Is(err, db.ErrWorkerClosed) {
		t.Fatalf("expected ErrWorkerClosed, got %v", err)
	}
}

// ── Seed ─────────────────────────────────────────────────────────────────────

func TestSeed_KeepsStoredSettings(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if _, err := conn.ExecContext(ctx, `INSERT INTO settings(key, value, updated_at_ms) VALUES ('entry_time', '06:30', 0)`); err != nil {
		t.Fatalf("pre-seed: %v", err)
	}

	err := db.Seed(ctx, conn, "prod", db.SeedOptions{
		KnownSubjects: []string{"siswa-1", " "},
		Settings:      map[string]string{"entry_time": "07:00", "exit_time": "15:00"},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var entry, exit string
	if err := conn.GetContext(ctx, &entry, `SELECT value FROM settings WHERE key = 'entry_time'`); err != nil {
		t.Fatalf("entry_time: %v", err)
	}
	if err := conn.GetContext(ctx, &exit, `SELECT value FROM settings WHERE key = 'exit_time'`); err != nil {
		t.Fatalf("exit_time: %v", err)
	}
	if entry != "06:30" {
		t.Errorf("stored entry_time must win, got %q", entry)
	}
	if exit != "15:00" {
		t.Errorf("expected seeded exit_time, got %q", exit)
	}

	var enabled int
	if err := conn.GetContext(ctx, &enabled, `SELECT enabled FROM subjects WHERE subject_id = 'siswa-1'`); err != nil {
		t.Fatalf("subject: %v", err)
	}
	if enabled != 1 {
		t.Error("expected seeded subject to be enabled")
	}
}
