package capture

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DefaultEarlyOpenOffset is how long before the configured exit time the
// check-out window opens.
const DefaultEarlyOpenOffset = 15 * time.Minute

// Mode is the action an attempt performs. The string values are the wire
// names the attendance server understands.
type Mode string

const (
	ModeCheckIn  Mode = "masuk"
	ModeCheckOut Mode = "pulang"
)

func (m Mode) Valid() bool { return m == ModeCheckIn || m == ModeCheckOut }

// Label is the human name of the action.
func (m Mode) Label() string {
	switch m {
	case ModeCheckIn:
		return "check-in"
	case ModeCheckOut:
		return "check-out"
	default:
		return "attendance"
	}
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, errors.Errorf("invalid time of day %q (want HH:MM or HH:MM:SS)", s)
}

// On returns the instant this time of day falls on, on day's calendar date
// in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, day.Location())
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DayState is the subject's progress for the current day.
type DayState int

const (
	NoRecord DayState = iota
	CheckedIn
	Complete
)

func (s DayState) String() string {
	switch s {
	case NoRecord:
		return "no_record"
	case CheckedIn:
		return "checked_in"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("DayState(%d)", int(s))
	}
}

// TodayRecord is the subject's attendance record for the current day as
// reported by the attendance server.
type TodayRecord struct {
	Date       string
	CheckInAt  *time.Time
	CheckOutAt *time.Time
}

func (r TodayRecord) State() DayState {
	switch {
	case r.CheckInAt == nil:
		return NoRecord
	case r.CheckOutAt == nil:
		return CheckedIn
	default:
		return Complete
	}
}

// ModeFor returns the action that is due for a day state. A completed day
// reports ModeCheckOut, the last action taken.
func ModeFor(state DayState) Mode {
	if state == NoRecord {
		return ModeCheckIn
	}
	return ModeCheckOut
}

// WindowClass classifies the current time against the attendance windows.
type WindowClass int

const (
	WindowOpen WindowClass = iota
	WindowTooEarly
	WindowTooLate
	WindowClosed
)

func (c WindowClass) String() string {
	switch c {
	case WindowOpen:
		return "open"
	case WindowTooEarly:
		return "too_early"
	case WindowTooLate:
		return "too_late"
	case WindowClosed:
		return "closed"
	default:
		return fmt.Sprintf("WindowClass(%d)", int(c))
	}
}

// Verdict is the result of evaluating the policy. OpensAt is set for
// WindowTooEarly and Deadline whenever a check-in deadline applies.
type Verdict struct {
	Mode     Mode
	Class    WindowClass
	OpensAt  time.Time
	Deadline time.Time
}

func (v Verdict) Allowed() bool { return v.Class == WindowOpen }

// WindowPolicy holds the school's configured times. Nil fields are not
// configured and do not restrict anything. EarlyOpenOffset is used as-is;
// settings parsing fills in DefaultEarlyOpenOffset when it is not given.
type WindowPolicy struct {
	Entry           *TimeOfDay
	Exit            *TimeOfDay
	Deadline        *TimeOfDay
	EarlyOpenOffset time.Duration
	// Location the times of day are expressed in. Nil means now's location.
	Location *time.Location
}

// Evaluate decides which action is due and whether it is allowed at now.
func (p WindowPolicy) Evaluate(state DayState, now time.Time) Verdict {
	if p.Location != nil {
		now = now.In(p.Location)
	}

	switch state {
	case Complete:
		return Verdict{Mode: ModeCheckOut, Class: WindowClosed}

	case CheckedIn:
		v := Verdict{Mode: ModeCheckOut, Class: WindowOpen}
		if p.Exit != nil {
			opens := p.Exit.On(now).Add(-p.EarlyOpenOffset)
			if now.Before(opens) {
				v.Class = WindowTooEarly
				v.OpensAt = opens
			}
		}
		return v

	default:
		v := Verdict{Mode: ModeCheckIn, Class: WindowOpen}
		if p.Deadline != nil {
			v.Deadline = p.Deadline.On(now)
			if now.After(v.Deadline) {
				v.Class = WindowTooLate
				return v
			}
		}
		if p.Entry != nil {
			opens := p.Entry.On(now).Add(-p.EarlyOpenOffset)
			if now.Before(opens) {
				v.Class = WindowTooEarly
				v.OpensAt = opens
			}
		}
		return v
	}
}
