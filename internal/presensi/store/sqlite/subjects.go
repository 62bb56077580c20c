package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	dbpkg "github.com/hadir-sekolah/presensi/internal/db"
)

type SubjectStore struct {
	db     *sqlx.DB
	writer *dbpkg.Worker
}

func NewSubjectStore(db *sqlx.DB, writer *dbpkg.Worker) *SubjectStore {
	return &SubjectStore{db: db, writer: writer}
}

// IsKnown treats a subject as known when its row exists and is enabled.
func (s *SubjectStore) IsKnown(ctx context.Context, subjectID string) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, nil
	}

	var enabled int
	err := s.db.GetContext(ctx, &enabled, `
SELECT enabled FROM subjects WHERE subject_id = ?;
`, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "IsKnown query")
	}
	return enabled == 1, nil
}

// MarkSeen ensures the subject row exists (even if unknown) and updates
// last_seen_at_ms.
func (s *SubjectStore) MarkSeen(ctx context.Context, subjectID string, t time.Time) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := ensureSubject(ctx, tx, subjectID, ms); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE subjects
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE subject_id = ?;
`, ms, ms, subjectID); err != nil {
			return errors.Wrap(err, "MarkSeen update subject")
		}
		return nil
	})
}
