package geo

import (
	"bufio"
	"context"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/pkg/errors"
)

// DefaultUERE is the user equivalent range error (meters) used to turn
// HDOP into an accuracy radius for consumer GNSS receivers.
const DefaultUERE = 5.0

// NMEAProvider reads NMEA 0183 sentences from a serial GNSS receiver (or any
// reader) and reports GGA fixes. Sentences other than GGA are ignored, as are
// GGA sentences without a valid fix or without a usable HDOP.
type NMEAProvider struct {
	// Device is opened on every watch, e.g. /dev/ttyACM0. Ignored when
	// Open is set.
	Device string
	// Open overrides how the sentence stream is obtained.
	Open func() (io.ReadCloser, error)
	UERE float64

	now func() time.Time
}

func (p *NMEAProvider) Name() string { return "nmea" }

func (p *NMEAProvider) Watch(ctx context.Context, _ WatchOptions) (Watch, error) {
	src, err := p.open()
	if err != nil {
		return nil, err
	}

	return startFeed(ctx, src, func(ctx context.Context, emit emitFunc) {
		sc := bufio.NewScanner(src)
		for sc.Scan() {
			if ctx.Err() != nil {
				return
			}
			fix, ok := p.parse(sc.Text())
			if !ok {
				continue
			}
			if !emit(Update{Fix: fix}) {
				return
			}
		}
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			emit(Update{Err: errors.Wrap(ErrPositionUnavailable, err.Error())})
		}
	}), nil
}

func (p *NMEAProvider) open() (io.ReadCloser, error) {
	if p.Open != nil {
		return p.Open()
	}
	if strings.TrimSpace(p.Device) == "" {
		return nil, ErrUnsupported
	}

	f, err := os.Open(p.Device)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, errors.Wrap(ErrUnsupported, p.Device)
	case errors.Is(err, fs.ErrPermission):
		return nil, errors.Wrap(ErrPermissionDenied, p.Device)
	default:
		return nil, errors.Wrap(ErrPositionUnavailable, err.Error())
	}
}

func (p *NMEAProvider) parse(line string) (Fix, bool) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return Fix{}, false
	}
	gga, ok := s.(nmea.GGA)
	if !ok || gga.FixQuality == nmea.Invalid || gga.FixQuality == "" {
		return Fix{}, false
	}
	// A blank HDOP field parses as 0, which would read as a perfect fix.
	if math.IsNaN(gga.HDOP) || math.IsInf(gga.HDOP, 0) || gga.HDOP <= 0 {
		return Fix{}, false
	}

	uere := p.UERE
	if uere <= 0 {
		uere = DefaultUERE
	}

	return Fix{
		Latitude:  gga.Latitude,
		Longitude: gga.Longitude,
		Accuracy:  gga.HDOP * uere,
		Timestamp: p.fixTime(gga.Time),
	}, true
}

// fixTime places the receiver's UTC time-of-day on the current UTC date.
// A time more than 12 hours ahead of now belongs to the previous day; a
// sentence from just before midnight is often read just after it.
func (p *NMEAProvider) fixTime(t nmea.Time) time.Time {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	today := now().UTC()
	if !t.Valid {
		return today
	}
	ft := time.Date(today.Year(), today.Month(), today.Day(),
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
	if ft.Sub(today) > 12*time.Hour {
		ft = ft.AddDate(0, 0, -1)
	}
	return ft
}
