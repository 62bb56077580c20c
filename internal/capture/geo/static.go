package geo

import (
	"context"
	"time"
)

// StaticProvider reports a surveyed position, for kiosk devices mounted at
// a fixed spot. The first fix is delivered immediately.
type StaticProvider struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Interval  time.Duration // defaults to 1s
}

func (p StaticProvider) Name() string { return "static" }

func (p StaticProvider) Watch(ctx context.Context, _ WatchOptions) (Watch, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}

	return startFeed(ctx, nil, func(ctx context.Context, emit emitFunc) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			fix := Fix{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Accuracy:  p.Accuracy,
				Timestamp: time.Now().UTC(),
			}
			if !emit(Update{Fix: fix}) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}), nil
}
