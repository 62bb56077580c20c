package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/capture"
	"github.com/hadir-sekolah/presensi/internal/client"
	"github.com/hadir-sekolah/presensi/internal/config"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailed   = 1
	exitRejected = 3
	exitCanceled = 130
)

type agent struct {
	cfg    config.AgentConfig
	logger logsvc.Logger
	client *client.Client
	orch   *capture.Orchestrator
	out    io.Writer
	now    func() time.Time
}

func newAgent(cfg config.AgentConfig, logger logsvc.Logger, out io.Writer) (*agent, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	c := client.New(client.Config{
		BaseURL:   cfg.ServerURL,
		SubjectID: cfg.SubjectID,
		Wire:      cfg.Wire,
		Timeout:   cfg.RequestTimeout,
	})

	orch := capture.NewOrchestrator(capture.Dependencies{
		Acquirer:  capture.NewAcquirer(provider, logger),
		Settings:  c,
		State:     c,
		Submitter: c,
		Logger:    logger,
	}, capture.OrchestratorConfig{
		DesiredAccuracy: cfg.DesiredAccuracy,
		AcquireTimeout:  cfg.AcquireTimeout,
		AccuracyCeiling: cfg.AccuracyCeiling,
		ReuseMaxAge:     cfg.ReuseMaxAge,
	})

	logger.Debugf("agent ready server=%s provider=%s wire=%s", cfg.ServerURL, provider.Name(), cfg.Wire)
	return &agent{cfg: cfg, logger: logger, client: c, orch: orch, out: out, now: time.Now}, nil
}

// attempt runs one attempt. An interrupt cancels it while it is still
// acquiring a position; once the position is judged the attempt finishes.
func (a *agent) attempt(ctx context.Context, preview bool) int {
	if ctx.Err() != nil {
		return exitCanceled
	}

	if preview {
		if code := a.locate(ctx); code != exitOK {
			return code
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if a.orch.Cancel(a.cfg.SubjectID) {
				a.logger.Infof("cancelling attempt")
			}
		case <-done:
		}
	}()

	att := a.orch.Attempt(context.Background(), a.cfg.SubjectID)
	fmt.Fprintln(a.out, att.Message)
	if att.Err != nil {
		a.logger.Debugf("attempt %s: %v", att.ID, att.Err)
	}

	switch att.Outcome {
	case capture.OutcomeSubmitted:
		return exitOK
	case capture.OutcomeCancelled:
		return exitCanceled
	case capture.OutcomeRejectedOutsidePolicyWindow,
		capture.OutcomeRejectedOutsideGeofence,
		capture.OutcomeRejectedLowAccuracy:
		return exitRejected
	default:
		return exitFailed
	}
}

// wait blocks until the window for today's pending action opens, then
// attempts.
func (a *agent) wait(ctx context.Context) int {
	settings, today, err := a.load(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Could not reach the attendance server: %v\n", err)
		return exitFailed
	}

	verdict := settings.Window.Evaluate(today.State(), a.now())
	if verdict.Class == capture.WindowTooEarly {
		fmt.Fprintf(a.out, "Waiting to %s; opens at %s (%s).\n", verdict.Mode.Label(),
			verdict.OpensAt.Format("15:04"), humanize.Time(verdict.OpensAt))
	}

	verdict, err = capture.WaitOpen(ctx, capture.WatcherConfig{
		Policy:   settings.Window,
		State:    today.State(),
		Interval: a.cfg.PolicyInterval,
	}, a.logger)
	if err != nil {
		if ctx.Err() != nil {
			return exitCanceled
		}
		fmt.Fprintln(a.out, capture.Message(capture.Attempt{
			Mode:       verdict.Mode,
			Verdict:    verdict,
			Outcome:    capture.OutcomeRejectedOutsidePolicyWindow,
			Err:        err,
			FinishedAt: a.now(),
		}))
		return exitRejected
	}

	return a.attempt(ctx, false)
}

func (a *agent) status(ctx context.Context) int {
	settings, today, err := a.load(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Could not reach the attendance server: %v\n", err)
		return exitFailed
	}

	fmt.Fprintf(a.out, "Date:      %s\n", today.Date)
	fmt.Fprintf(a.out, "Check-in:  %s\n", clock(today.CheckInAt, settings.Window.Location))
	fmt.Fprintf(a.out, "Check-out: %s\n", clock(today.CheckOutAt, settings.Window.Location))

	v := settings.Window.Evaluate(today.State(), a.now())
	switch v.Class {
	case capture.WindowOpen:
		fmt.Fprintf(a.out, "Next:      %s (open now)\n", v.Mode.Label())
	case capture.WindowTooEarly:
		fmt.Fprintf(a.out, "Next:      %s (opens at %s)\n", v.Mode.Label(), v.OpensAt.Format("15:04"))
	case capture.WindowTooLate:
		fmt.Fprintf(a.out, "Next:      %s (closed at %s)\n", v.Mode.Label(), v.Deadline.Format("15:04"))
	case capture.WindowClosed:
		fmt.Fprintln(a.out, "Next:      nothing, today is complete")
	}

	if settings.Geofence.Enforced() {
		ref := settings.Geofence.Reference
		fmt.Fprintf(a.out, "School:    %.6f, %.6f (radius %s m)\n",
			ref.Latitude, ref.Longitude, humanize.Comma(int64(settings.Geofence.Radius())))
	}
	return exitOK
}

func (a *agent) locate(ctx context.Context) int {
	s, err := a.orch.Locate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return exitCanceled
		}
		fmt.Fprintln(a.out, capture.Message(capture.Attempt{Outcome: capture.OutcomeFailed, Err: err}))
		return exitFailed
	}

	fmt.Fprintf(a.out, "Position:  %.6f, %.6f ±%s m\n",
		s.Latitude, s.Longitude, humanize.Comma(int64(math.Round(s.Accuracy))))

	settings, err := a.client.Settings(ctx)
	if err != nil {
		a.logger.Warnf("settings unavailable: %v", err)
		return exitOK
	}
	if d, inside, enforced := settings.Geofence.Check(s); enforced {
		where := "outside"
		if inside {
			where = "inside"
		}
		fmt.Fprintf(a.out, "Distance:  %s m from school (%s the %s m area)\n",
			humanize.Comma(int64(math.Round(d))), where, humanize.Comma(int64(settings.Geofence.Radius())))
	}
	return exitOK
}

func (a *agent) load(ctx context.Context) (capture.Settings, capture.TodayRecord, error) {
	settings, err := a.client.Settings(ctx)
	if err != nil {
		return capture.Settings{}, capture.TodayRecord{}, errors.Wrap(err, "settings")
	}
	today, err := a.client.Today(ctx, a.cfg.SubjectID)
	if err != nil {
		return capture.Settings{}, capture.TodayRecord{}, errors.Wrap(err, "today")
	}
	return settings, today, nil
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	if loc != nil {
		return t.In(loc).Format("15:04")
	}
	return t.Format("15:04")
}
