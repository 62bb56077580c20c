package store

import (
	"context"
	"time"
)

// Submission outcomes recorded in the audit log.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeInvalid   = "invalid"
)

// SubmissionEvent captures a single submission decision for the audit log.
type SubmissionEvent struct {
	SubjectID      string
	AttemptID      string
	Mode           string
	Date           string
	Latitude       *float64
	Longitude      *float64
	Accuracy       *float64
	DistanceMeters *float64
	DeviceTime     *time.Time // optional device-reported timestamp
	ReceivedAt     time.Time
	Outcome        string
	Reason         string
}

// SubmissionEventStore persists submission decisions as an append-only log.
type SubmissionEventStore interface {
	RecordEvent(ctx context.Context, ev SubmissionEvent) error
	// PruneOlderThan deletes events received before cutoff and returns the
	// number removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
