package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadir-sekolah/presensi/internal/capture"
	"github.com/hadir-sekolah/presensi/internal/capture/geo"
	"github.com/hadir-sekolah/presensi/internal/client"
	"github.com/hadir-sekolah/presensi/internal/httpapi"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
	"github.com/hadir-sekolah/presensi/internal/presensi/service"
	"github.com/hadir-sekolah/presensi/internal/presensi/store/memory"
)

// startServer runs the attendance server on in-memory stores with a
// geofence of 200 m around (0, 0) and no window restrictions.
func startServer(t *testing.T) (*httptest.Server, *memory.AttendanceStore) {
	t.Helper()

	records := memory.NewAttendanceStore()
	settings := service.NewSettingsService(memory.NewSettingsStore(map[string]string{
		"school_latitude":       "0",
		"school_longitude":      "0",
		"allowed_radius_meters": "200",
	}))
	attendance := service.NewAttendanceService(
		service.NewSubjectRegistry(memory.NewSubjectStore([]string{"siswa-1"})),
		settings, records, memory.NewSubmissionEventStore(), logsvc.Discard(),
	)

	srv := httptest.NewServer(httpapi.NewServer(httpapi.Dependencies{
		Attendance: attendance,
		Settings:   settings,
	}).Handler())
	t.Cleanup(srv.Close)
	return srv, records
}

func newOrchestrator(srv *httptest.Server, wire string, fixes ...geo.Fix) *capture.Orchestrator {
	steps := make([]geo.ReplayStep, 0, len(fixes))
	for i := range fixes {
		steps = append(steps, geo.ReplayStep{After: 5 * time.Millisecond, Fix: &fixes[i]})
	}
	c := client.New(client.Config{BaseURL: srv.URL, SubjectID: "siswa-1", Wire: wire, Timeout: 2 * time.Second})

	return capture.NewOrchestrator(capture.Dependencies{
		Acquirer:  capture.NewAcquirer(geo.NewReplayProvider(steps...), logsvc.Discard()),
		Settings:  c,
		State:     c,
		Submitter: c,
		Logger:    logsvc.Discard(),
	}, capture.OrchestratorConfig{AcquireTimeout: time.Second})
}

func TestEndToEnd_CheckInWithinGeofence(t *testing.T) {
	for _, wire := range []string{client.WireJSON, client.WireProtobuf} {
		t.Run(wire, func(t *testing.T) {
			srv, records := startServer(t)
			orch := newOrchestrator(srv, wire, geo.Fix{Latitude: 0, Longitude: 0.0005, Accuracy: 20})

			att := orch.Attempt(context.Background(), "siswa-1")

			require.Equal(t, capture.OutcomeSubmitted, att.Outcome, "err: %v", att.Err)
			require.NotNil(t, att.DistanceMeters)
			assert.InDelta(t, 55.6, *att.DistanceMeters, 1)
			require.NotNil(t, att.Receipt)
			assert.False(t, att.Receipt.Duplicate)

			rec, err := records.Today(context.Background(), "siswa-1", att.Receipt.Date)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, 0.0005, rec.CheckIn.Longitude)
			assert.Equal(t, att.ID, rec.CheckIn.AttemptID)

			// The next attempt is a check-out.
			again := orch.Attempt(context.Background(), "siswa-1")
			require.Equal(t, capture.OutcomeSubmitted, again.Outcome, "err: %v", again.Err)
			assert.Equal(t, capture.ModeCheckOut, again.Mode)
		})
	}
}

func TestEndToEnd_OutsideGeofenceNeverSubmits(t *testing.T) {
	srv, records := startServer(t)
	orch := newOrchestrator(srv, client.WireJSON, geo.Fix{Latitude: 1, Longitude: 1, Accuracy: 20})

	att := orch.Attempt(context.Background(), "siswa-1")

	assert.Equal(t, capture.OutcomeRejectedOutsideGeofence, att.Outcome)
	require.NotNil(t, att.DistanceMeters)
	assert.Greater(t, *att.DistanceMeters, 150_000.0)

	rec, err := records.Today(context.Background(), "siswa-1", time.Now().UTC().Format("2006-01-02"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}
