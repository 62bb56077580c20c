package capture

import (
	"context"
	"sync"
	"time"

	"github.com/hadir-sekolah/presensi/internal/logsvc"
)

// DefaultWatchInterval is how often a PolicyWatcher re-evaluates the
// window. Boundary crossings are not events, so the policy is polled.
const DefaultWatchInterval = 10 * time.Second

// WatcherConfig holds the parameters for NewPolicyWatcher.
type WatcherConfig struct {
	Policy WindowPolicy
	State  DayState

	// Interval between evaluations. Defaults to DefaultWatchInterval.
	Interval time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// PolicyWatcher re-evaluates a WindowPolicy on a fixed cadence while an
// attendance action is pending and reports verdict class changes. It runs
// as a background goroutine and is stopped via its context or Stop.
type PolicyWatcher struct {
	policy   WindowPolicy
	state    DayState
	interval time.Duration
	now      func() time.Time
	onChange func(Verdict)
	logger   logsvc.Logger

	mu      sync.Mutex
	started bool
	current Verdict
	seen    bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPolicyWatcher creates a watcher but does not start it. onChange is
// called from the watcher goroutine with the first verdict and again
// whenever the verdict class changes.
func NewPolicyWatcher(cfg WatcherConfig, onChange func(Verdict), logger logsvc.Logger) *PolicyWatcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logsvc.Discard()
	}
	if onChange == nil {
		onChange = func(Verdict) {}
	}

	return &PolicyWatcher{
		policy:   cfg.Policy,
		state:    cfg.State,
		interval: interval,
		now:      now,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start evaluates immediately, then on every tick until ctx is cancelled
// or Stop is called. Starting twice is a no-op.
func (w *PolicyWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.loop(ctx)

	w.logger.Debugf("policy watcher started (state=%s, interval=%s)", w.state, w.interval)
}

// Stop signals the watcher to exit and waits for it. It is safe to call
// more than once and on a watcher that was never started.
func (w *PolicyWatcher) Stop() {
	w.mu.Lock()
	started, cancel := w.started, w.cancel
	w.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-w.done
}

// Current returns the latest verdict, evaluating on demand before the
// first tick.
func (w *PolicyWatcher) Current() Verdict {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.seen {
		return w.policy.Evaluate(w.state, w.now())
	}
	return w.current
}

func (w *PolicyWatcher) loop(ctx context.Context) {
	defer close(w.done)

	w.evaluate()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.evaluate()
		}
	}
}

func (w *PolicyWatcher) evaluate() {
	v := w.policy.Evaluate(w.state, w.now())

	w.mu.Lock()
	changed := !w.seen || v.Class != w.current.Class
	w.current, w.seen = v, true
	w.mu.Unlock()

	if changed {
		w.logger.Debugf("policy: %s is %s", v.Mode.Label(), v.Class)
		w.onChange(v)
	}
}

// WaitOpen blocks until the window for cfg.State opens. A terminal verdict
// (WindowTooLate or WindowClosed) is returned as a *PolicyError.
func WaitOpen(ctx context.Context, cfg WatcherConfig, logger logsvc.Logger) (Verdict, error) {
	ctx, cancel := context.WithCancel(ctx)

	changes := make(chan Verdict)
	w := NewPolicyWatcher(cfg, func(v Verdict) {
		select {
		case changes <- v:
		case <-ctx.Done():
		}
	}, logger)
	w.Start(ctx)
	defer w.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return w.Current(), ctx.Err()
		case v := <-changes:
			switch v.Class {
			case WindowOpen:
				return v, nil
			case WindowTooLate, WindowClosed:
				return v, &PolicyError{Verdict: v}
			}
		}
	}
}
