package sqlite_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/hadir-sekolah/presensi/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	// Each test gets its own shared-cache in-memory database, kept alive for
	// the lifetime of the single pooled connection.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := db.OpenDSN(context.Background(), dsn)
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sqlx.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedSubject inserts an enabled subject.
func seedSubject(t *testing.T, conn *sqlx.DB, subjectID string) {
	t.Helper()

	_, err := conn.ExecContext(context.Background(), `
INSERT INTO subjects(subject_id, enabled, created_at_ms, updated_at_ms)
VALUES (?, 1, 0, 0);
`, subjectID)
	if err != nil {
		t.Fatalf("seedSubject %s: %v", subjectID, err)
	}
}
