package capture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/capture/geo"
)

var (
	ErrNoFix               = errors.New("no position fix obtained")
	ErrLocationUnknown     = errors.New("unknown location error")
	ErrCancelled           = errors.New("cancelled")
	ErrAcquisitionInFlight = errors.New("position acquisition already in progress")
	ErrAttemptInFlight     = errors.New("attendance attempt already in progress")
	ErrInvalidSubject      = errors.New("subject id is required")
	ErrNotConfigured       = errors.New("orchestrator dependency not configured")

	ErrOutsideWindow    = errors.New("outside attendance window")
	ErrOutsideGeofence  = errors.New("outside geofence")
	ErrLowAccuracy      = errors.New("position accuracy too low")
	ErrSubmissionFailed = errors.New("submission failed")
)

// PolicyError reports a time-of-day rejection. Verdict carries the class
// and, for WindowTooEarly, the opening time.
type PolicyError struct {
	Verdict Verdict
}

func (e *PolicyError) Error() string {
	if e.Verdict.Class == WindowTooEarly {
		return fmt.Sprintf("%s: %s %s until %s",
			ErrOutsideWindow, e.Verdict.Mode.Label(), e.Verdict.Class, e.Verdict.OpensAt.Format("15:04:05"))
	}
	return fmt.Sprintf("%s: %s %s", ErrOutsideWindow, e.Verdict.Mode.Label(), e.Verdict.Class)
}

func (e *PolicyError) Is(target error) bool { return target == ErrOutsideWindow }

type GeofenceError struct {
	Distance float64
	Radius   int
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("%s: %.0fm from reference, limit %dm", ErrOutsideGeofence, e.Distance, e.Radius)
}

func (e *GeofenceError) Is(target error) bool { return target == ErrOutsideGeofence }

type AccuracyError struct {
	Accuracy float64
	Ceiling  float64
}

func (e *AccuracyError) Error() string {
	return fmt.Sprintf("%s: ±%.0fm exceeds %.0fm", ErrLowAccuracy, e.Accuracy, e.Ceiling)
}

func (e *AccuracyError) Is(target error) bool { return target == ErrLowAccuracy }

// SubmissionError is returned by a Submitter when the attendance endpoint
// rejects a record or cannot be reached. Status is zero for transport
// failures. Reason and Fields are the server-provided message and
// field-keyed errors, when present.
type SubmissionError struct {
	Status int
	Reason string
	Fields map[string]string
	Err    error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSubmissionFailed.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionFailed }

func (e *SubmissionError) Unwrap() error { return e.Err }

// classifyLocationError maps a provider error onto the location error
// kinds. Anything unrecognised becomes ErrLocationUnknown.
func classifyLocationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, geo.ErrUnsupported),
		errors.Is(err, geo.ErrPermissionDenied),
		errors.Is(err, geo.ErrPositionUnavailable),
		errors.Is(err, geo.ErrTimeout),
		errors.Is(err, ErrNoFix),
		errors.Is(err, ErrCancelled):
		return err
	default:
		return errors.Wrap(ErrLocationUnknown, err.Error())
	}
}
