package main

import (
	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/capture/geo"
	"github.com/hadir-sekolah/presensi/internal/config"
)

func newProvider(cfg config.AgentConfig) (geo.Provider, error) {
	switch cfg.Provider {
	case "", "nmea":
		return &geo.NMEAProvider{Device: cfg.NMEADevice}, nil
	case "replay":
		if cfg.ReplayFile == "" {
			return nil, errors.New("provider replay needs PRESENSI_REPLAY_FILE")
		}
		return geo.LoadReplayFile(cfg.ReplayFile)
	case "static":
		return geo.StaticProvider{
			Latitude:  cfg.StaticLat,
			Longitude: cfg.StaticLon,
			Accuracy:  cfg.StaticAcc,
		}, nil
	default:
		return nil, errors.Errorf("unknown provider %q (want nmea, replay or static)", cfg.Provider)
	}
}
