package capture

import (
	"context"
	"fmt"
	"time"
)

// Outcome is the terminal state of an attendance attempt.
type Outcome int

const (
	OutcomeSubmitted Outcome = iota + 1
	OutcomeRejectedOutsideGeofence
	OutcomeRejectedOutsidePolicyWindow
	OutcomeRejectedLowAccuracy
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeRejectedOutsideGeofence:
		return "rejected_outside_geofence"
	case OutcomeRejectedOutsidePolicyWindow:
		return "rejected_outside_policy_window"
	case OutcomeRejectedLowAccuracy:
		return "rejected_low_accuracy"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Attempt is the result of one user-initiated attendance attempt. It is
// never persisted on the device.
type Attempt struct {
	ID        string
	SubjectID string
	Mode      Mode
	Verdict   Verdict

	// Position is the sample the decision was based on, when one was
	// obtained. DistanceMeters is nil when no geofence is configured.
	Position       *PositionSample
	DistanceMeters *float64

	Outcome Outcome
	Err     error
	Message string
	Receipt *Receipt

	StartedAt  time.Time
	FinishedAt time.Time
}

// Submission is the record handed to the attendance endpoint.
type Submission struct {
	AttemptID string
	SubjectID string
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
	Mode      Mode
}

// Receipt is the endpoint's acknowledgement. Duplicate is set when the
// record for this subject, date and mode already existed.
type Receipt struct {
	Duplicate  bool
	Date       string
	RecordedAt time.Time
}

// Submitter delivers a submission to the attendance endpoint. Failures are
// reported as *SubmissionError.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (Receipt, error)
}

type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

type StateSource interface {
	Today(ctx context.Context, subjectID string) (TodayRecord, error)
}
