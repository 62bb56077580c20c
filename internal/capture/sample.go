// Package capture implements the client-side attendance capture core: it
// acquires a device position, checks it against the school geofence and the
// daily attendance windows, and submits a check-in or check-out.
package capture

import (
	"time"

	"github.com/hadir-sekolah/presensi/internal/capture/geo"
)

// PositionSample is one location reading. Accuracy is the reported radius
// of uncertainty in meters; lower is better.
type PositionSample struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// Better reports whether s is strictly more accurate than other.
func (s PositionSample) Better(other PositionSample) bool {
	return s.Accuracy < other.Accuracy
}

// usable reports whether s carries finite coordinates and a non-negative
// accuracy.
func (s PositionSample) usable() bool {
	return finite(s.Latitude) && finite(s.Longitude) && finite(s.Accuracy) && s.Accuracy >= 0
}

func sampleFromFix(f geo.Fix, now time.Time) PositionSample {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return PositionSample{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  f.Accuracy,
		Timestamp: ts,
	}
}
