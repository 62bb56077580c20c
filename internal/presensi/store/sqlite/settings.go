package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	dbpkg "github.com/hadir-sekolah/presensi/internal/db"
)

type SettingsStore struct {
	db     *sqlx.DB
	writer *dbpkg.Worker
}

func NewSettingsStore(db *sqlx.DB, writer *dbpkg.Worker) *SettingsStore {
	return &SettingsStore{db: db, writer: writer}
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (s *SettingsStore) All(ctx context.Context) (map[string]string, error) {
	var rows []settingRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings;`); err != nil {
		return nil, errors.Wrap(err, "settings query")
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *SettingsStore) Put(ctx context.Context, kv map[string]string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	ms := at.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		for k, v := range kv {
			if v == "" {
				if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?;`, k); err != nil {
					return errors.Wrapf(err, "delete setting %s", k)
				}
				continue
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO settings(key, value, updated_at_ms) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value = excluded.value,
  updated_at_ms = excluded.updated_at_ms;
`, k, v, ms); err != nil {
				return errors.Wrapf(err, "put setting %s", k)
			}
		}
		return nil
	})
}
