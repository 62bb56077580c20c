package service_test

import (
	"time"

	"github.com/hadir-sekolah/presensi/internal/presensi/service"
	"github.com/hadir-sekolah/presensi/internal/presensi/store/memory"
)

var schoolSettings = map[string]string{
	"school_latitude":       "-6.2",
	"school_longitude":      "106.8166",
	"allowed_radius_meters": "200",
	"entry_time":            "07:00",
	"entry_deadline":        "08:00",
	"exit_time":             "15:00",
	"early_open_minutes":    "15",
	"timezone":              "Asia/Jakarta",
}

// wib returns a time on 2 March 2026 in Western Indonesian Time (UTC+7).
func wib(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.FixedZone("WIB", 7*3600))
}

type testService struct {
	svc      *service.AttendanceService
	settings *service.SettingsService
	records  *memory.AttendanceStore
	events   *memory.SubmissionEventStore
	now      time.Time
}

// newTestAttendanceService builds an AttendanceService backed by in-memory
// stores with the clock pinned to ts.now.
func newTestAttendanceService(knownSubjects []string, settings map[string]string) *testService {
	ts := &testService{
		records: memory.NewAttendanceStore(),
		events:  memory.NewSubmissionEventStore(),
		now:     wib(7, 5),
	}
	ts.settings = service.NewSettingsService(memory.NewSettingsStore(settings))
	ts.svc = service.NewAttendanceService(
		service.NewSubjectRegistry(memory.NewSubjectStore(knownSubjects)),
		ts.settings,
		ts.records,
		ts.events,
		nil,
	)
	ts.svc.SetClock(func() time.Time { return ts.now })
	return ts
}
