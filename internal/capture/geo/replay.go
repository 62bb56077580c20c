package geo

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ReplayStep is one scripted provider event. After is measured from the
// previous step (or from the start of the watch for the first step).
type ReplayStep struct {
	After time.Duration
	Fix   *Fix
	Err   error
}

// ReplayProvider plays back a fixed script on every watch. It is used for
// demos and tests, and for devices whose fixes are recorded elsewhere.
type ReplayProvider struct {
	Steps []ReplayStep
	// EndAfterScript closes the update channel after the last step. By
	// default the watch stays open and silent like a real subscription.
	EndAfterScript bool

	opened atomic.Int64
	active atomic.Int64
}

func NewReplayProvider(steps ...ReplayStep) *ReplayProvider {
	return &ReplayProvider{Steps: steps}
}

func (p *ReplayProvider) Name() string { return "replay" }

func (p *ReplayProvider) Watch(ctx context.Context, _ WatchOptions) (Watch, error) {
	steps := make([]ReplayStep, len(p.Steps))
	copy(steps, p.Steps)

	p.opened.Add(1)
	p.active.Add(1)

	f := startFeed(ctx, nil, func(ctx context.Context, emit emitFunc) {
		for _, st := range steps {
			if st.After > 0 {
				t := time.NewTimer(st.After)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}

			u := Update{Err: st.Err}
			if st.Fix != nil {
				u.Fix = *st.Fix
				if u.Fix.Timestamp.IsZero() {
					u.Fix.Timestamp = time.Now().UTC()
				}
			}
			if !emit(u) {
				return
			}
		}

		if !p.EndAfterScript {
			<-ctx.Done()
		}
	})
	f.onStop = func() { p.active.Add(-1) }

	return f, nil
}

// Opened reports how many watches have been started.
func (p *ReplayProvider) Opened() int64 { return p.opened.Load() }

// Active reports how many watches are currently open.
func (p *ReplayProvider) Active() int64 { return p.active.Load() }

type replayLine struct {
	AfterMs  int64    `json:"after_ms"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Accuracy float64  `json:"accuracy"`
	Error    string   `json:"error"`
}

// LoadReplayFile reads a JSON-lines script, one step per line:
//
//	{"after_ms": 800, "lat": -6.2, "lon": 106.8, "accuracy": 42}
//	{"after_ms": 500, "error": "permission_denied"}
func LoadReplayFile(path string) (*ReplayProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open replay file %s", path)
	}
	defer f.Close()

	var steps []ReplayStep
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var rl replayLine
		if err := json.Unmarshal([]byte(line), &rl); err != nil {
			return nil, errors.Wrapf(err, "replay file %s line %d", path, n)
		}

		st := ReplayStep{After: time.Duration(rl.AfterMs) * time.Millisecond}
		switch {
		case rl.Error != "":
			st.Err = parseProviderError(rl.Error)
		case rl.Lat != nil && rl.Lon != nil:
			st.Fix = &Fix{Latitude: *rl.Lat, Longitude: *rl.Lon, Accuracy: rl.Accuracy}
		default:
			return nil, errors.Errorf("replay file %s line %d: need lat/lon or error", path, n)
		}
		steps = append(steps, st)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read replay file %s", path)
	}

	return NewReplayProvider(steps...), nil
}

func parseProviderError(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "permission_denied":
		return ErrPermissionDenied
	case "position_unavailable":
		return ErrPositionUnavailable
	case "timeout":
		return ErrTimeout
	default:
		return errors.New(s)
	}
}
