package sqlite_test

import (
	"context"
	"testing"
	"time"

	sqlitestore "github.com/hadir-sekolah/presensi/internal/presensi/store/sqlite"
)

func TestSettingsStore_PutUpsertsAndDeletes(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewSettingsStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if err := ss.Put(ctx, map[string]string{"entry_time": "07:00", "exit_time": "15:00"}, now); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ss.Put(ctx, map[string]string{"entry_time": "06:45", "exit_time": ""}, now.Add(time.Minute)); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	all, err := ss.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 setting, got %v", all)
	}
	if all["entry_time"] != "06:45" {
		t.Errorf("expected entry_time=06:45, got %q", all["entry_time"])
	}
}
