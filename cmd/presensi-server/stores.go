package main

import (
	"context"

	"github.com/hadir-sekolah/presensi/internal/config"
	"github.com/hadir-sekolah/presensi/internal/db"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
	"github.com/hadir-sekolah/presensi/internal/presensi/store"
	"github.com/hadir-sekolah/presensi/internal/presensi/store/memory"
	"github.com/hadir-sekolah/presensi/internal/presensi/store/sqlite"
)

type stores struct {
	subjects store.SubjectStore
	records  store.AttendanceStore
	events   store.SubmissionEventStore
	settings store.SettingsStore
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, logger logsvc.Logger) (*stores, error) {
	if cfg.Store == "memory" {
		logger.Infof("using in-memory stores; records are lost on restart")
		known := cfg.KnownSubjects
		if len(known) == 0 && cfg.Env == "dev" {
			known = []string{db.DevSubject}
		}
		return &stores{
			subjects: memory.NewSubjectStore(known),
			records:  memory.NewAttendanceStore(),
			events:   memory.NewSubmissionEventStore(),
			settings: memory.NewSettingsStore(cfg.SettingsSeed),
			close:    func() {},
		}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, err
	}
	if err := db.Seed(ctx, conn, cfg.Env, db.SeedOptions{
		KnownSubjects: cfg.KnownSubjects,
		Settings:      cfg.SettingsSeed,
	}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if v, err := db.CurrentVersion(ctx, conn); err == nil {
		logger.Infof("sqlite %s at schema version %d", cfg.DBPath, v)
	}

	writer := db.NewWorker(conn)
	return &stores{
		subjects: sqlite.NewSubjectStore(conn, writer),
		records:  sqlite.NewAttendanceStore(conn, writer),
		events:   sqlite.NewSubmissionEventStore(conn, writer),
		settings: sqlite.NewSettingsStore(conn, writer),
		close: func() {
			writer.Close()
			_ = conn.Close()
		},
	}, nil
}
