package capture

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/capture/geo"
)

// Message renders the user-facing text for a finished attempt.
func Message(a Attempt) string {
	action := a.Mode.Label()

	switch a.Outcome {
	case OutcomeSubmitted:
		if a.Receipt != nil && a.Receipt.Duplicate {
			return upperFirst(action) + " was already recorded today."
		}
		at := a.FinishedAt
		if a.Receipt != nil && !a.Receipt.RecordedAt.IsZero() {
			at = a.Receipt.RecordedAt
		}
		return fmt.Sprintf("%s recorded at %s.", upperFirst(action), at.Format("15:04"))

	case OutcomeRejectedOutsidePolicyWindow:
		return windowMessage(a)

	case OutcomeRejectedOutsideGeofence:
		var ge *GeofenceError
		if errors.As(a.Err, &ge) {
			return fmt.Sprintf("You are %s m from school; %s is only allowed within %s m.",
				humanize.Comma(int64(math.Round(ge.Distance))), action, humanize.Comma(int64(ge.Radius)))
		}
		return "You are outside the school area."

	case OutcomeRejectedLowAccuracy:
		var ae *AccuracyError
		if errors.As(a.Err, &ae) {
			return fmt.Sprintf("Location is only accurate to ±%s m (limit %s m). Move to an open area and try again.",
				humanize.Comma(int64(math.Round(ae.Accuracy))), humanize.Comma(int64(math.Round(ae.Ceiling))))
		}
		return "Location is not accurate enough. Move to an open area and try again."

	case OutcomeCancelled:
		return "Attendance attempt cancelled."

	case OutcomeFailed:
		return failureMessage(a.Err)
	}

	return "Attendance attempt finished."
}

func windowMessage(a Attempt) string {
	v := a.Verdict
	switch v.Class {
	case WindowTooEarly:
		return fmt.Sprintf("Too early to %s. It opens at %s (%s).",
			verb(v.Mode), v.OpensAt.Format("15:04"), humanize.RelTime(v.OpensAt, a.FinishedAt, "ago", "from now"))
	case WindowTooLate:
		return fmt.Sprintf("Check-in closed at %s.", v.Deadline.Format("15:04"))
	case WindowClosed:
		return "Attendance for today is already complete."
	default:
		return "Attendance is not open right now."
	}
}

func failureMessage(err error) string {
	var se *SubmissionError
	switch {
	case err == nil:
		return "Attendance attempt failed."
	case errors.Is(err, ErrAttemptInFlight):
		return "An attendance attempt is already in progress."
	case errors.Is(err, ErrInvalidSubject):
		return "No student is selected for this attempt."
	case errors.Is(err, geo.ErrUnsupported):
		return "This device has no location capability."
	case errors.Is(err, geo.ErrPermissionDenied):
		return "Location permission was denied. Allow location access and try again."
	case errors.Is(err, geo.ErrPositionUnavailable):
		return "Your position is unavailable right now. Try again in a moment."
	case errors.Is(err, geo.ErrTimeout), errors.Is(err, ErrNoFix):
		return "Could not get a location fix in time. Try again outdoors."
	case errors.Is(err, ErrLocationUnknown):
		return "Location failed for an unknown reason."
	case errors.As(err, &se):
		if se.Reason != "" {
			return se.Reason
		}
		for _, key := range []string{"latitude", "longitude", "accuracy", "mode"} {
			if msg := se.Fields[key]; msg != "" {
				return msg
			}
		}
		return "Attendance could not be submitted. Please try again."
	default:
		return "Attendance could not be completed. Please try again."
	}
}

func verb(m Mode) string {
	if m == ModeCheckOut {
		return "check out"
	}
	return "check in"
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
