package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/capture"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
	"github.com/hadir-sekolah/presensi/internal/presensi/store"
	"github.com/hadir-sekolah/presensi/internal/presensi/types"
)

const dateLayout = "2006-01-02"

// AttendanceService records check-ins and check-outs. Every submission is
// judged again here with the same window policy and geofence the agent
// used; the agent's own verdict is never trusted.
type AttendanceService struct {
	registry   *SubjectRegistry
	settings   *SettingsService
	records    store.AttendanceStore
	eventStore store.SubmissionEventStore
	logger     logsvc.Logger
	now        func() time.Time
}

func NewAttendanceService(
	reg *SubjectRegistry,
	settings *SettingsService,
	records store.AttendanceStore,
	es store.SubmissionEventStore,
	logger logsvc.Logger,
) *AttendanceService {
	if logger == nil {
		logger = logsvc.Discard()
	}
	return &AttendanceService{
		registry:   reg,
		settings:   settings,
		records:    records,
		eventStore: es,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the service clock. Tests use it to pin "now".
func (s *AttendanceService) SetClock(now func() time.Time) {
	s.now = now
	s.settings.now = now
}

// Submit records one check-in or check-out for subjectID.
//
// A mode already recorded today is acknowledged with Duplicate set and the
// original time. Errors:
//   - ErrInvalidSubject / ErrUnknownSubject for a missing or unknown subject
//   - types.FieldErrors when the request does not validate
//   - ErrNoCheckIn for a check-out with no check-in today
//   - *capture.PolicyError when the window is not open
//   - *capture.GeofenceError when the position is outside the school area
func (s *AttendanceService) Submit(ctx context.Context, subjectID, attemptID string, req types.SubmitRequest) (types.SubmitResponse, error) {
	now := s.now().UTC()
	attemptID = strings.TrimSpace(attemptID)

	ev := store.SubmissionEvent{
		SubjectID:  strings.TrimSpace(subjectID),
		AttemptID:  attemptID,
		Mode:       strings.TrimSpace(req.Mode),
		ReceivedAt: now,
	}

	subjectID, err := s.registry.Require(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUnknownSubject) {
			_ = s.registry.NoteSeen(ctx, subjectID)
			ev.Date = now.Format(dateLayout)
			s.recordEvent(ctx, ev, store.OutcomeRejected, "unknown_subject")
		}
		return types.SubmitResponse{}, err
	}
	_ = s.registry.NoteSeen(ctx, subjectID)

	settings, err := s.settings.Parsed(ctx)
	if err != nil {
		return types.SubmitResponse{}, err
	}
	local := inLocation(now, settings.Window.Location)
	ev.Date = local.Format(dateLayout)

	if err := types.Validate(req); err != nil {
		s.recordEvent(ctx, ev, store.OutcomeInvalid, err.Error())
		return types.SubmitResponse{}, err
	}

	sample, deviceTime, err := parseSubmission(req)
	if err != nil {
		s.recordEvent(ctx, ev, store.OutcomeInvalid, err.Error())
		return types.SubmitResponse{}, err
	}
	ev.Latitude, ev.Longitude, ev.Accuracy = &sample.Latitude, &sample.Longitude, &sample.Accuracy
	ev.DeviceTime = deviceTime
	mode := capture.Mode(ev.Mode)

	rec, err := s.records.Today(ctx, subjectID, ev.Date)
	if err != nil {
		return types.SubmitResponse{}, errors.Wrap(err, "load today's record")
	}

	if prior := recordedMark(rec, mode); prior != nil {
		s.recordEvent(ctx, ev, store.OutcomeDuplicate, "already_recorded")
		return s.response(mode, ev.Date, *prior, true, now, settings.Window.Location), nil
	}
	if mode == capture.ModeCheckOut && rec == nil {
		s.recordEvent(ctx, ev, store.OutcomeRejected, "no_check_in")
		return types.SubmitResponse{}, ErrNoCheckIn
	}

	verdict := settings.Window.Evaluate(todayRecord(rec).State(), now)
	if !verdict.Allowed() {
		s.recordEvent(ctx, ev, store.OutcomeRejected, "outside_window:"+verdict.Class.String())
		return types.SubmitResponse{}, &capture.PolicyError{Verdict: verdict}
	}

	mark := store.Mark{
		At:        now,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Accuracy:  sample.Accuracy,
		AttemptID: attemptID,
	}
	if distance, inside, enforced := settings.Geofence.Check(sample); enforced {
		mark.DistanceMeters = &distance
		ev.DistanceMeters = &distance
		if !inside {
			s.recordEvent(ctx, ev, store.OutcomeRejected, "outside_geofence")
			return types.SubmitResponse{}, &capture.GeofenceError{Distance: distance, Radius: settings.Geofence.Radius()}
		}
	}

	var stored bool
	if mode == capture.ModeCheckIn {
		stored, err = s.records.InsertCheckIn(ctx, subjectID, ev.Date, mark)
	} else {
		stored, err = s.records.SetCheckOut(ctx, subjectID, ev.Date, mark)
	}
	if err != nil {
		return types.SubmitResponse{}, errors.Wrapf(err, "record %s", mode.Label())
	}

	if !stored {
		// A concurrent submission for the same mode won.
		rec, err := s.records.Today(ctx, subjectID, ev.Date)
		if err != nil {
			return types.SubmitResponse{}, errors.Wrap(err, "reload today's record")
		}
		if prior := recordedMark(rec, mode); prior != nil {
			s.recordEvent(ctx, ev, store.OutcomeDuplicate, "already_recorded")
			return s.response(mode, ev.Date, *prior, true, now, settings.Window.Location), nil
		}
		return types.SubmitResponse{}, errors.Errorf("%s for %s on %s was not stored", mode.Label(), subjectID, ev.Date)
	}

	s.recordEvent(ctx, ev, store.OutcomeAccepted, "")
	s.logger.Infof("%s recorded subject=%s date=%s attempt=%s", mode.Label(), subjectID, ev.Date, attemptID)
	return s.response(mode, ev.Date, mark, false, now, settings.Window.Location), nil
}

// Today returns subjectID's record for the current school day.
func (s *AttendanceService) Today(ctx context.Context, subjectID string) (types.TodayResponse, error) {
	subjectID, err := s.registry.Require(ctx, subjectID)
	if err != nil {
		return types.TodayResponse{}, err
	}

	settings, err := s.settings.Parsed(ctx)
	if err != nil {
		return types.TodayResponse{}, err
	}
	loc := settings.Window.Location
	date := inLocation(s.now().UTC(), loc).Format(dateLayout)

	rec, err := s.records.Today(ctx, subjectID, date)
	if err != nil {
		return types.TodayResponse{}, errors.Wrap(err, "load today's record")
	}

	resp := types.TodayResponse{Date: date}
	if rec != nil {
		in := formatTime(rec.CheckIn.At, loc)
		resp.JamMasuk = &in
		if rec.CheckOut != nil {
			out := formatTime(rec.CheckOut.At, loc)
			resp.JamPulang = &out
		}
	}
	return resp, nil
}

func (s *AttendanceService) response(mode capture.Mode, date string, m store.Mark, duplicate bool, now time.Time, loc *time.Location) types.SubmitResponse {
	att := capture.Attempt{
		Mode:       mode,
		Outcome:    capture.OutcomeSubmitted,
		Receipt:    &capture.Receipt{Duplicate: duplicate, Date: date, RecordedAt: inLocation(m.At, loc)},
		FinishedAt: inLocation(now, loc),
	}
	return types.SubmitResponse{
		OK:             true,
		Duplicate:      duplicate,
		Mode:           string(mode),
		Date:           date,
		RecordedAt:     formatTime(m.At, loc),
		DistanceMeters: m.DistanceMeters,
		Message:        capture.Message(att),
		ServerTime:     now.Format(time.RFC3339Nano),
	}
}

// recordEvent persists the decision to the audit log.  Errors are logged
// and not returned; a failed audit write must not change the decision the
// agent receives.
func (s *AttendanceService) recordEvent(ctx context.Context, ev store.SubmissionEvent, outcome, reason string) {
	ev.Outcome = outcome
	ev.Reason = reason
	if err := s.eventStore.RecordEvent(ctx, ev); err != nil {
		s.logger.Warnf("audit write failed subject=%s outcome=%s: %v", ev.SubjectID, outcome, err)
	}
}

// RejectionMessage renders the user-facing text for an error returned by
// Submit, or "" when err is not a rejection.
func RejectionMessage(mode string, err error, now time.Time) string {
	att := capture.Attempt{Mode: capture.Mode(mode), Err: err, FinishedAt: now}
	var pe *capture.PolicyError
	switch {
	case errors.As(err, &pe):
		att.Outcome = capture.OutcomeRejectedOutsidePolicyWindow
		att.Verdict = pe.Verdict
		att.Mode = pe.Verdict.Mode
	case errors.Is(err, capture.ErrOutsideGeofence):
		att.Outcome = capture.OutcomeRejectedOutsideGeofence
	case errors.Is(err, ErrNoCheckIn):
		return "Check in first; there is no check-in recorded today."
	default:
		return ""
	}
	return capture.Message(att)
}

func parseSubmission(req types.SubmitRequest) (capture.PositionSample, *time.Time, error) {
	bad := types.FieldErrors{}
	num := func(field, v string) float64 {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			bad[field] = field + " must be a number"
		}
		return f
	}

	s := capture.PositionSample{
		Latitude:  num("latitude", req.Latitude),
		Longitude: num("longitude", req.Longitude),
		Accuracy:  num("accuracy", req.Accuracy),
	}

	var deviceTime *time.Time
	if ts := strings.TrimSpace(req.Timestamp); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			bad["timestamp"] = "timestamp must be an RFC 3339 time"
		} else {
			u := t.UTC()
			deviceTime = &u
			s.Timestamp = u
		}
	}

	if len(bad) > 0 {
		return capture.PositionSample{}, nil, bad
	}
	return s, deviceTime, nil
}

// recordedMark returns the mark already stored for mode, if any.
func recordedMark(rec *store.AttendanceRecord, mode capture.Mode) *store.Mark {
	if rec == nil {
		return nil
	}
	if mode == capture.ModeCheckIn {
		return &rec.CheckIn
	}
	return rec.CheckOut
}

func todayRecord(rec *store.AttendanceRecord) capture.TodayRecord {
	if rec == nil {
		return capture.TodayRecord{}
	}
	in := rec.CheckIn.At
	tr := capture.TodayRecord{Date: rec.Date, CheckInAt: &in}
	if rec.CheckOut != nil {
		out := rec.CheckOut.At
		tr.CheckOutAt = &out
	}
	return tr
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t.UTC()
	}
	return t.In(loc)
}

func formatTime(t time.Time, loc *time.Location) string {
	return inLocation(t, loc).Format(time.RFC3339)
}
