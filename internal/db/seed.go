package db

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// DevSubject is enabled in dev when no subjects are configured.
const DevSubject = "siswa-demo"

type SeedOptions struct {
	// KnownSubjects are created (or re-enabled) as allowed subjects.
	KnownSubjects []string
	// Settings are written only where no value is stored yet, so edits
	// made through the API survive restarts.
	Settings map[string]string
}

// Seed prepares a database from configuration. In dev a demo subject is
// added when no subjects are configured.
func Seed(ctx context.Context, db *sqlx.DB, env string, opt SeedOptions) error {
	now := time.Now().UTC().UnixMilli()

	subjects := opt.KnownSubjects
	if len(subjects) == 0 && env == "dev" {
		subjects = []string{DevSubject}
	}

	for _, id := range subjects {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO subjects(subject_id, enabled, created_at_ms, updated_at_ms)
VALUES (?, 1, ?, ?)
ON CONFLICT(subject_id) DO UPDATE SET
  enabled = 1,
  updated_at_ms = excluded.updated_at_ms;
`, id, now, now); err != nil {
			return errors.Wrapf(err, "seed subject %s", id)
		}
	}

	for k, v := range opt.Settings {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO settings(key, value, updated_at_ms) VALUES (?, ?, ?);
`, k, v, now); err != nil {
			return errors.Wrapf(err, "seed setting %s", k)
		}
	}

	return nil
}
