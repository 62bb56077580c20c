package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/logsvc"
)

// OrchestratorConfig holds the attempt thresholds. Zero values take the
// defaults noted on each field.
type OrchestratorConfig struct {
	// DesiredAccuracy in meters. Defaults to 30.
	DesiredAccuracy float64
	// AcquireTimeout defaults to 15s.
	AcquireTimeout time.Duration
	// AccuracyCeiling rejects fixes less accurate than this many meters
	// even inside the geofence. Defaults to 100; negative disables it.
	AccuracyCeiling float64
	// ReuseMaxAge lets an attempt use a position obtained by Locate if it
	// is no older than this and has not been used yet. Zero disables reuse.
	ReuseMaxAge time.Duration
}

const (
	DefaultDesiredAccuracy = 30.0
	DefaultAcquireTimeout  = 15 * time.Second
	DefaultAccuracyCeiling = 100.0
)

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.DesiredAccuracy <= 0 {
		c.DesiredAccuracy = DefaultDesiredAccuracy
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.AccuracyCeiling == 0 {
		c.AccuracyCeiling = DefaultAccuracyCeiling
	}
	return c
}

// Dependencies are the collaborators of an Orchestrator. Settings, State and
// Submitter are required by Attempt, Acquirer by Attempt and Locate unless a
// reusable position is cached; a missing one fails with ErrNotConfigured.
type Dependencies struct {
	Acquirer  *Acquirer
	Settings  SettingsSource
	State     StateSource
	Submitter Submitter
	Logger    logsvc.Logger
	// Now is the wall clock used for policy decisions. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs attendance attempts: policy check, position
// acquisition, geofence and accuracy checks, then submission. At most one
// attempt per subject is in flight.
type Orchestrator struct {
	deps Dependencies
	cfg  OrchestratorConfig

	mu       sync.Mutex
	inflight map[string]*attemptRun
	cached   *cachedSample
}

type cachedSample struct {
	sample PositionSample
	at     time.Time
}

func NewOrchestrator(deps Dependencies, cfg OrchestratorConfig) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logsvc.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		inflight: make(map[string]*attemptRun),
	}
}

type attemptPhase int

const (
	phasePreparing attemptPhase = iota
	phaseAcquiring
	phaseDecided
)

// attemptRun is the cancellation handle of one in-flight attempt.
type attemptRun struct {
	mu        sync.Mutex
	phase     attemptPhase
	cancelled bool
	acq       *Acquisition
	stopPrep  context.CancelFunc
}

func (r *attemptRun) cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == phaseDecided || r.cancelled {
		return false
	}
	r.cancelled = true
	if r.acq != nil {
		r.acq.Cancel()
	}
	r.stopPrep()
	return true
}

// attach registers the acquisition so Cancel can reach it. A cancel that
// raced ahead of the acquisition is applied immediately.
func (r *attemptRun) attach(acq *Acquisition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = phaseAcquiring
	r.acq = acq
	if r.cancelled {
		acq.Cancel()
	}
}

// decide closes the cancellation window. It reports false when the attempt
// was cancelled first.
func (r *attemptRun) decide() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return false
	}
	r.phase = phaseDecided
	return true
}

func (r *attemptRun) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// InFlight reports whether subjectID has an attempt in progress.
func (o *Orchestrator) InFlight(subjectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[subjectID]
	return ok
}

// Cancel aborts subjectID's in-flight attempt. It returns false when there
// is nothing to cancel: no attempt, or one whose position has already been
// checked against the geofence.
func (o *Orchestrator) Cancel(subjectID string) bool {
	o.mu.Lock()
	run := o.inflight[subjectID]
	o.mu.Unlock()

	if run == nil {
		return false
	}
	return run.cancel()
}

// Locate acquires a position ahead of an attempt, e.g. to preview the
// distance to school. With ReuseMaxAge set the next attempt may use it.
func (o *Orchestrator) Locate(ctx context.Context) (PositionSample, error) {
	if o.deps.Acquirer == nil {
		return PositionSample{}, errors.Wrap(ErrNotConfigured, "acquirer")
	}
	s, err := o.deps.Acquirer.Acquire(ctx, o.acquireOptions())
	if err != nil {
		return PositionSample{}, err
	}

	o.mu.Lock()
	o.cached = &cachedSample{sample: s, at: o.deps.Now()}
	o.mu.Unlock()

	return s, nil
}

func (o *Orchestrator) acquireOptions() AcquireOptions {
	return AcquireOptions{DesiredAccuracy: o.cfg.DesiredAccuracy, Timeout: o.cfg.AcquireTimeout}
}

// takeCached hands out the cached sample once, if it is fresh enough.
func (o *Orchestrator) takeCached() (PositionSample, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	c := o.cached
	o.cached = nil
	if c == nil || o.cfg.ReuseMaxAge <= 0 {
		return PositionSample{}, false
	}
	if o.deps.Now().Sub(c.at) > o.cfg.ReuseMaxAge {
		return PositionSample{}, false
	}
	return c.sample, true
}

func (o *Orchestrator) begin(subjectID string) (*attemptRun, context.Context, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[subjectID]; busy {
		return nil, nil, false
	}
	prepCtx, stop := context.WithCancel(context.Background())
	run := &attemptRun{stopPrep: stop}
	o.inflight[subjectID] = run
	return run, prepCtx, true
}

func (o *Orchestrator) end(subjectID string, run *attemptRun) {
	run.stopPrep()
	o.mu.Lock()
	if o.inflight[subjectID] == run {
		delete(o.inflight, subjectID)
	}
	o.mu.Unlock()
}

// Attempt runs one attendance attempt for subjectID to a terminal outcome.
// It never returns with the in-flight lock or a location watch held.
func (o *Orchestrator) Attempt(ctx context.Context, subjectID string) Attempt {
	att := Attempt{
		ID:        uuid.NewString(),
		SubjectID: strings.TrimSpace(subjectID),
		StartedAt: o.deps.Now(),
	}
	if att.SubjectID == "" {
		return o.finish(att, OutcomeFailed, ErrInvalidSubject)
	}
	if err := o.deps.check(); err != nil {
		return o.finish(att, OutcomeFailed, err)
	}

	run, prepCtx, ok := o.begin(att.SubjectID)
	if !ok {
		return o.finish(att, OutcomeFailed, ErrAttemptInFlight)
	}
	defer o.end(att.SubjectID, run)

	// Settings, state and position are abandoned by Cancel as well as by
	// the caller's context.
	prepCtx, stopPrep := mergeCancel(ctx, prepCtx)
	defer stopPrep()

	settings, err := o.deps.Settings.Settings(prepCtx)
	if err != nil {
		return o.finishPrep(ctx, att, run, errors.Wrap(err, "load settings"))
	}
	today, err := o.deps.State.Today(prepCtx, att.SubjectID)
	if err != nil {
		return o.finishPrep(ctx, att, run, errors.Wrap(err, "load today's attendance"))
	}
	if run.isCancelled() {
		return o.finish(att, OutcomeCancelled, ErrCancelled)
	}

	att.Verdict = settings.Window.Evaluate(today.State(), o.deps.Now())
	att.Mode = att.Verdict.Mode
	if !att.Verdict.Allowed() {
		return o.finish(att, OutcomeRejectedOutsidePolicyWindow, &PolicyError{Verdict: att.Verdict})
	}

	sample, err := o.position(prepCtx, run)
	if err != nil {
		if errors.Is(err, ErrCancelled) || run.isCancelled() {
			return o.finish(att, OutcomeCancelled, err)
		}
		return o.finish(att, OutcomeFailed, err)
	}
	att.Position = &sample

	if !run.decide() {
		return o.finish(att, OutcomeCancelled, ErrCancelled)
	}

	if distance, inside, enforced := settings.Geofence.Check(sample); enforced {
		att.DistanceMeters = &distance
		if !inside {
			return o.finish(att, OutcomeRejectedOutsideGeofence,
				&GeofenceError{Distance: distance, Radius: settings.Geofence.Radius()})
		}
	}

	if ceiling := o.cfg.AccuracyCeiling; ceiling > 0 && sample.Accuracy > ceiling {
		return o.finish(att, OutcomeRejectedLowAccuracy, &AccuracyError{Accuracy: sample.Accuracy, Ceiling: ceiling})
	}

	// The request runs to completion once issued; only the caller's
	// context bounds it.
	receipt, err := o.deps.Submitter.Submit(ctx, Submission{
		AttemptID: att.ID,
		SubjectID: att.SubjectID,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Accuracy:  sample.Accuracy,
		Timestamp: sample.Timestamp,
		Mode:      att.Mode,
	})
	if err != nil {
		var se *SubmissionError
		if !errors.As(err, &se) {
			err = &SubmissionError{Err: err}
		}
		return o.finish(att, OutcomeFailed, err)
	}

	att.Receipt = &receipt
	return o.finish(att, OutcomeSubmitted, nil)
}

func (d Dependencies) check() error {
	switch {
	case d.Settings == nil:
		return errors.Wrap(ErrNotConfigured, "settings source")
	case d.State == nil:
		return errors.Wrap(ErrNotConfigured, "attendance state source")
	case d.Submitter == nil:
		return errors.Wrap(ErrNotConfigured, "submitter")
	}
	return nil
}

func (o *Orchestrator) position(ctx context.Context, run *attemptRun) (PositionSample, error) {
	if s, ok := o.takeCached(); ok {
		o.deps.Logger.Debugf("attempt: reusing position from %s", s.Timestamp.Format(time.RFC3339))
		return s, nil
	}
	if o.deps.Acquirer == nil {
		return PositionSample{}, errors.Wrap(ErrNotConfigured, "acquirer")
	}

	acq, err := o.deps.Acquirer.Start(ctx, o.acquireOptions())
	if err != nil {
		return PositionSample{}, err
	}
	run.attach(acq)
	return acq.Result()
}

// finishPrep reports a failure while loading settings or state, which is
// a cancellation if Cancel or the caller's context caused it.
func (o *Orchestrator) finishPrep(ctx context.Context, att Attempt, run *attemptRun, err error) Attempt {
	if run.isCancelled() {
		return o.finish(att, OutcomeCancelled, ErrCancelled)
	}
	if cerr := ctx.Err(); cerr != nil {
		return o.finish(att, OutcomeCancelled, errors.Wrap(ErrCancelled, cerr.Error()))
	}
	return o.finish(att, OutcomeFailed, err)
}

func (o *Orchestrator) finish(att Attempt, outcome Outcome, err error) Attempt {
	att.Outcome = outcome
	att.Err = err
	att.FinishedAt = o.deps.Now()
	att.Message = Message(att)

	if err != nil && outcome == OutcomeFailed {
		o.deps.Logger.Warnf("attempt %s subject=%s mode=%s: %s: %v", att.ID, att.SubjectID, att.Mode, outcome, err)
	} else {
		o.deps.Logger.Infof("attempt %s subject=%s mode=%s: %s", att.ID, att.SubjectID, att.Mode, outcome)
	}
	return att
}

// mergeCancel returns a context that is done when either parent is.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
