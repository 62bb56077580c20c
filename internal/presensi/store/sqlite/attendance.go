package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	dbpkg "github.com/hadir-sekolah/presensi/internal/db"
	"github.com/hadir-sekolah/presensi/internal/presensi/store"
)

type AttendanceStore struct {
	db     *sqlx.DB
	writer *dbpkg.Worker
}

func NewAttendanceStore(db *sqlx.DB, writer *dbpkg.Worker) *AttendanceStore {
	return &AttendanceStore{db: db, writer: writer}
}

type attendanceRow struct {
	SubjectID string `db:"subject_id"`
	Date      string `db:"date"`

	CheckInAtMs      int64           `db:"check_in_at_ms"`
	CheckInLat       float64         `db:"check_in_lat"`
	CheckInLon       float64         `db:"check_in_lon"`
	CheckInAccuracy  float64         `db:"check_in_accuracy_m"`
	CheckInDistance  sql.NullFloat64 `db:"check_in_distance_m"`
	CheckInAttemptID string          `db:"check_in_attempt_id"`

	CheckOutAtMs      sql.NullInt64   `db:"check_out_at_ms"`
	CheckOutLat       sql.NullFloat64 `db:"check_out_lat"`
	CheckOutLon       sql.NullFloat64 `db:"check_out_lon"`
	CheckOutAccuracy  sql.NullFloat64 `db:"check_out_accuracy_m"`
	CheckOutDistance  sql.NullFloat64 `db:"check_out_distance_m"`
	CheckOutAttemptID sql.NullString  `db:"check_out_attempt_id"`
}

func (r attendanceRow) record() *store.AttendanceRecord {
	rec := &store.AttendanceRecord{
		SubjectID: r.SubjectID,
		Date:      r.Date,
		CheckIn: store.Mark{
			At:             time.UnixMilli(r.CheckInAtMs).UTC(),
			Latitude:       r.CheckInLat,
			Longitude:      r.CheckInLon,
			Accuracy:       r.CheckInAccuracy,
			DistanceMeters: floatPtr(r.CheckInDistance),
			AttemptID:      r.CheckInAttemptID,
		},
	}
	if r.CheckOutAtMs.Valid {
		rec.CheckOut = &store.Mark{
			At:             time.UnixMilli(r.CheckOutAtMs.Int64).UTC(),
			Latitude:       r.CheckOutLat.Float64,
			Longitude:      r.CheckOutLon.Float64,
			Accuracy:       r.CheckOutAccuracy.Float64,
			DistanceMeters: floatPtr(r.CheckOutDistance),
			AttemptID:      r.CheckOutAttemptID.String,
		}
	}
	return rec
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (s *AttendanceStore) Today(ctx context.Context, subjectID, date string) (*store.AttendanceRecord, error) {
	var row attendanceRow
	err := s.db.GetContext(ctx, &row, `
SELECT subject_id, date,
       check_in_at_ms, check_in_lat, check_in_lon, check_in_accuracy_m, check_in_distance_m, check_in_attempt_id,
       check_out_at_ms, check_out_lat, check_out_lon, check_out_accuracy_m, check_out_distance_m, check_out_attempt_id
FROM attendance_records
WHERE subject_id = ? AND date = ?;
`, strings.TrimSpace(subjectID), date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Today query")
	}
	return row.record(), nil
}

func (s *AttendanceStore) InsertCheckIn(ctx context.Context, subjectID, date string, m store.Mark) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}
	atMs := m.At.UTC().UnixMilli()

	var inserted bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := ensureSubject(ctx, tx, subjectID, atMs); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO attendance_records(
  subject_id, date, check_in_at_ms, check_in_lat, check_in_lon,
  check_in_accuracy_m, check_in_distance_m, check_in_attempt_id,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(subject_id, date) DO NOTHING;
`, subjectID, date, atMs, m.Latitude, m.Longitude,
			m.Accuracy, floatArg(m.DistanceMeters), m.AttemptID,
			atMs, atMs)
		if err != nil {
			return errors.Wrap(err, "InsertCheckIn")
		}
		n, _ := res.RowsAffected()
		inserted = n == 1
		return nil
	})
	return inserted, err
}

func (s *AttendanceStore) SetCheckOut(ctx context.Context, subjectID, date string, m store.Mark) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}
	atMs := m.At.UTC().UnixMilli()

	var updated bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE attendance_records
SET check_out_at_ms = ?,
    check_out_lat = ?,
    check_out_lon = ?,
    check_out_accuracy_m = ?,
    check_out_distance_m = ?,
    check_out_attempt_id = ?,
    updated_at_ms = ?
WHERE subject_id = ? AND date = ? AND check_out_at_ms IS NULL;
`, atMs, m.Latitude, m.Longitude, m.Accuracy, floatArg(m.DistanceMeters), m.AttemptID,
			atMs, subjectID, date)
		if err != nil {
			return errors.Wrap(err, "SetCheckOut")
		}
		n, _ := res.RowsAffected()
		updated = n == 1
		return nil
	})
	return updated, err
}
