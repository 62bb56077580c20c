package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	dbpkg "github.com/hadir-sekolah/presensi/internal/db"
	"github.com/hadir-sekolah/presensi/internal/presensi/store"
)

type SubmissionEventStore struct {
	db     *sqlx.DB
	writer *dbpkg.Worker
}

func NewSubmissionEventStore(db *sqlx.DB, writer *dbpkg.Worker) *SubmissionEventStore {
	return &SubmissionEventStore{db: db, writer: writer}
}

func (s *SubmissionEventStore) RecordEvent(ctx context.Context, ev store.SubmissionEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}

	var deviceMs any
	if ev.DeviceTime != nil {
		deviceMs = ev.DeviceTime.UTC().UnixMilli()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO submission_events(
  subject_id, attempt_id, mode, date, latitude, longitude, accuracy_m,
  distance_m, device_time_ms, received_at_ms, outcome, reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			ev.SubjectID, ev.AttemptID, ev.Mode, ev.Date,
			floatArg(ev.Latitude), floatArg(ev.Longitude), floatArg(ev.Accuracy),
			floatArg(ev.DistanceMeters), deviceMs, ev.ReceivedAt.UTC().UnixMilli(),
			ev.Outcome, ev.Reason,
		); err != nil {
			return errors.Wrap(err, "RecordEvent insert")
		}
		return nil
	})
}

// PruneOlderThan deletes audit rows with received_at_ms before cutoff.
//
// Uses the idx_submission_events_time index for an efficient range scan.
func (s *SubmissionEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM submission_events
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return errors.Wrap(err, "PruneOlderThan")
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
