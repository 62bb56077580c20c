package capture

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/capture/geo"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
)

type AcquireOptions struct {
	// DesiredAccuracy (meters) resolves the acquisition early as soon as a
	// sample is at least this accurate.
	DesiredAccuracy float64
	// Timeout is the hard ceiling; on expiry the best sample so far wins.
	Timeout time.Duration
}

func (o AcquireOptions) validate() error {
	if o.DesiredAccuracy <= 0 {
		return errors.Errorf("desired accuracy must be positive, got %v", o.DesiredAccuracy)
	}
	if o.Timeout <= 0 {
		return errors.Errorf("acquire timeout must be positive, got %v", o.Timeout)
	}
	return nil
}

// Acquirer obtains the most accurate position a provider can deliver
// within a time budget. It represents one device's location capability:
// only one acquisition runs at a time.
type Acquirer struct {
	provider geo.Provider
	logger   logsvc.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *Acquisition
}

func NewAcquirer(provider geo.Provider, logger logsvc.Logger) *Acquirer {
	if logger == nil {
		logger = logsvc.Discard()
	}
	return &Acquirer{
		provider: provider,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a location watch and returns the running acquisition. It
// fails immediately when the device has no location capability, when the
// provider refuses the watch, or when another acquisition is pending.
func (a *Acquirer) Start(ctx context.Context, opts AcquireOptions) (*Acquisition, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if a.provider == nil {
		return nil, geo.ErrUnsupported
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && !a.current.settled() {
		return nil, ErrAcquisitionInFlight
	}

	w, err := a.provider.Watch(ctx, geo.WatchOptions{HighAccuracy: true, MaximumAge: 0})
	if err != nil {
		return nil, classifyLocationError(err)
	}

	x := &Acquisition{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	a.current = x
	a.logger.Debugf("acquire: watching %s (desired=%.0fm timeout=%s)", a.provider.Name(), opts.DesiredAccuracy, opts.Timeout)

	go x.run(ctx, w, opts, a.now, a.logger)

	return x, nil
}

// Acquire runs one acquisition to completion.
func (a *Acquirer) Acquire(ctx context.Context, opts AcquireOptions) (PositionSample, error) {
	x, err := a.Start(ctx, opts)
	if err != nil {
		return PositionSample{}, err
	}
	return x.Result()
}

type acquisitionState int

const (
	statePending acquisitionState = iota
	stateResolved
	stateFailed
	stateCancelled
)

// Acquisition is one pending position request. The state moves from
// pending to exactly one of resolved, failed or cancelled.
type Acquisition struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu     sync.Mutex
	state  acquisitionState
	sample PositionSample
	err    error
}

// Cancel settles a pending acquisition as ErrCancelled and stops the watch.
// It is a no-op once the acquisition has settled.
func (x *Acquisition) Cancel() {
	x.settle(stateCancelled, PositionSample{}, ErrCancelled)
	x.stopOnce.Do(func() { close(x.stop) })
}

// Done is closed once the acquisition has settled and its watch and timer
// have been released.
func (x *Acquisition) Done() <-chan struct{} { return x.done }

// Result blocks until the acquisition is done.
func (x *Acquisition) Result() (PositionSample, error) {
	<-x.done
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.sample, x.err
}

func (x *Acquisition) settled() bool {
	select {
	case <-x.done:
		return true
	default:
		return false
	}
}

// settle records the first terminal state; later calls are ignored.
func (x *Acquisition) settle(state acquisitionState, s PositionSample, err error) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != statePending {
		return false
	}
	x.state, x.sample, x.err = state, s, err
	return true
}

func (x *Acquisition) run(ctx context.Context, w geo.Watch, opts AcquireOptions, now func() time.Time, logger logsvc.Logger) {
	defer close(x.done)

	state, sample, err := x.track(ctx, w, opts, now, logger)

	if cerr := w.Close(); cerr != nil {
		logger.Warnf("acquire: close watch: %v", cerr)
	}
	x.settle(state, sample, err)
}

// track consumes updates until the acquisition has an answer. The best
// sample is owned by this goroutine alone.
func (x *Acquisition) track(ctx context.Context, w geo.Watch, opts AcquireOptions, now func() time.Time, logger logsvc.Logger) (acquisitionState, PositionSample, error) {
	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	var (
		best    PositionSample
		hasBest bool
	)
	bestOrFail := func(err error) (acquisitionState, PositionSample, error) {
		if hasBest {
			return stateResolved, best, nil
		}
		return stateFailed, PositionSample{}, err
	}

	updates := w.Updates()
	for {
		select {
		case <-x.stop:
			return stateCancelled, PositionSample{}, ErrCancelled

		case <-ctx.Done():
			return stateCancelled, PositionSample{}, errors.Wrap(ErrCancelled, ctx.Err().Error())

		case <-timer.C:
			return bestOrFail(ErrNoFix)

		case u, ok := <-updates:
			if !ok {
				return bestOrFail(geo.ErrPositionUnavailable)
			}
			if u.Err != nil {
				if !hasBest {
					return stateFailed, PositionSample{}, classifyLocationError(u.Err)
				}
				logger.Warnf("acquire: provider error after fix ignored: %v", u.Err)
				continue
			}

			s := sampleFromFix(u.Fix, now())
			if !s.usable() {
				logger.Warnf("acquire: unusable fix ignored: accuracy=%v lat=%v lon=%v", s.Accuracy, s.Latitude, s.Longitude)
				continue
			}
			if !hasBest || s.Better(best) {
				best, hasBest = s, true
			}
			if s.Accuracy <= opts.DesiredAccuracy {
				return stateResolved, s, nil
			}
		}
	}
}
