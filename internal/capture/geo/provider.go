// Package geo abstracts the device location capability used by the capture
// core. A Provider opens continuous watches; each Watch delivers position
// fixes (or provider errors) until it is closed.
package geo

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Provider error kinds. Providers return (or wrap) one of these so callers
// can classify failures with errors.Is.
var (
	ErrUnsupported         = errors.New("location capability unavailable")
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location provider timed out")
)

// Fix is a single position report.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters, 1-sigma radius as reported by the source
	Timestamp time.Time
}

// Update carries either a fix or a provider error.
type Update struct {
	Fix Fix
	Err error
}

// WatchOptions mirror the knobs platform location APIs expose.
type WatchOptions struct {
	HighAccuracy bool
	// MaximumAge is the oldest cached fix the provider may hand out.
	// Zero means every fix must be fresh.
	MaximumAge time.Duration
}

type Provider interface {
	Name() string
	// Watch starts a continuous subscription. The returned Watch must be
	// closed by the caller; closing it stops delivery and releases the
	// underlying source.
	Watch(ctx context.Context, opts WatchOptions) (Watch, error)
}

type Watch interface {
	// Updates is closed when the subscription ends.
	Updates() <-chan Update
	Close() error
}
