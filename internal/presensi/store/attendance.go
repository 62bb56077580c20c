package store

import (
	"context"
	"time"
)

// Mark is one side of a day's record: where and when the subject was seen.
type Mark struct {
	At             time.Time
	Latitude       float64
	Longitude      float64
	Accuracy       float64
	DistanceMeters *float64 // nil when no geofence was configured
	AttemptID      string
}

// AttendanceRecord is a subject's record for one school day. CheckOut is
// nil until the subject checks out.
type AttendanceRecord struct {
	SubjectID string
	Date      string // YYYY-MM-DD in the school's timezone
	CheckIn   Mark
	CheckOut  *Mark
}

// AttendanceStore keeps at most one record per (subject, date).
type AttendanceStore interface {
	// Today returns nil, nil when no record exists for date.
	Today(ctx context.Context, subjectID, date string) (*AttendanceRecord, error)
	// InsertCheckIn creates the day's record. It reports false, without
	// error, when a record already exists.
	InsertCheckIn(ctx context.Context, subjectID, date string, m Mark) (bool, error)
	// SetCheckOut fills the check-out side. It reports false when there is
	// no record for the day or the check-out was already set.
	SetCheckOut(ctx context.Context, subjectID, date string, m Mark) (bool, error)
}
