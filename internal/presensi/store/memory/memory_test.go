package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/hadir-sekolah/presensi/internal/presensi/store"
	"github.com/hadir-sekolah/presensi/internal/presensi/store/memory"
)

func TestAttendanceStore_CheckInThenOut(t *testing.T) {
	s := memory.NewAttendanceStore()
	ctx := context.Background()
	in := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)

	rec, err := s.Today(ctx, "s1", "2026-03-02")
	if err != nil || rec != nil {
		t.Fatalf("expected no record, got %+v, %v", rec, err)
	}

	ok, err := s.InsertCheckIn(ctx, "s1", "2026-03-02", store.Mark{At: in, Accuracy: 8})
	if err != nil || !ok {
		t.Fatalf("InsertCheckIn: ok=%v err=%v", ok, err)
	}
	ok, _ = s.InsertCheckIn(ctx, "s1", "2026-03-02", store.Mark{At: in.Add(time.Minute)})
	if ok {
		t.Error("second check-in for the same day must not insert")
	}

	ok, _ = s.SetCheckOut(ctx, "s1", "2026-03-02", store.Mark{At: in.Add(8 * time.Hour)})
	if !ok {
		t.Fatal("expected check-out to be set")
	}
	ok, _ = s.SetCheckOut(ctx, "s1", "2026-03-02", store.Mark{At: in.Add(9 * time.Hour)})
	if ok {
		t.Error("check-out must only be set once")
	}

	rec, _ = s.Today(ctx, "s1", "2026-03-02")
	if rec == nil || rec.CheckOut == nil {
		t.Fatalf("expected a complete record, got %+v", rec)
	}
	if !rec.CheckIn.At.Equal(in) {
		t.Errorf("check-in time changed: %v", rec.CheckIn.At)
	}
	if !rec.CheckOut.At.Equal(in.Add(8 * time.Hour)) {
		t.Errorf("expected first check-out to stick, got %v", rec.CheckOut.At)
	}
}

func TestAttendanceStore_CheckOutWithoutCheckIn(t *testing.T) {
	s := memory.NewAttendanceStore()
	ok, err := s.SetCheckOut(context.Background(), "s1", "2026-03-02", store.Mark{At: time.Now()})
	if err != nil {
		t.Fatalf("SetCheckOut: %v", err)
	}
	if ok {
		t.Error("check-out without a record must report false")
	}
}

func TestSubmissionEventStore_Prune(t *testing.T) {
	s := memory.NewSubmissionEventStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_ = s.RecordEvent(ctx, store.SubmissionEvent{
			SubjectID:  "s1",
			ReceivedAt: base.Add(time.Duration(i) * 24 * time.Hour),
			Outcome:    store.OutcomeAccepted,
		})
	}

	n, err := s.PruneOlderThan(ctx, base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned, got %d", n)
	}
	if got := len(s.Events()); got != 2 {
		t.Errorf("expected 2 remaining, got %d", got)
	}
}

func TestSettingsStore_PutAndDelete(t *testing.T) {
	s := memory.NewSettingsStore(map[string]string{"entry_time": "07:00", "exit_time": ""})
	ctx := context.Background()

	all, _ := s.All(ctx)
	if len(all) != 1 || all["entry_time"] != "07:00" {
		t.Fatalf("unexpected seed: %v", all)
	}

	_ = s.Put(ctx, map[string]string{"entry_time": "", "exit_time": "15:00"}, time.Now())
	all, _ = s.All(ctx)
	if _, ok := all["entry_time"]; ok {
		t.Error("empty value should delete the key")
	}
	if all["exit_time"] != "15:00" {
		t.Errorf("expected exit_time=15:00, got %q", all["exit_time"])
	}
}

func TestSubjectStore_KnownAndSeen(t *testing.T) {
	s := memory.NewSubjectStore([]string{" s1 ", ""})
	ctx := context.Background()

	if ok, _ := s.IsKnown(ctx, "s1"); !ok {
		t.Error("expected trimmed s1 to be known")
	}
	if ok, _ := s.IsKnown(ctx, "s2"); ok {
		t.Error("s2 should be unknown")
	}

	at := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	_ = s.MarkSeen(ctx, "s2", at)
	if got, ok := s.LastSeen("s2"); !ok || !got.Equal(at) {
		t.Errorf("LastSeen = %v, %v", got, ok)
	}
}
