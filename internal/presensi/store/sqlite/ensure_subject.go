package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ensureSubject guarantees a subjects row exists for subjectID so that the
// foreign key from attendance_records is satisfied.
//
// New rows start disabled; only the seeder or an operator enables a subject.
//
// Must be called inside an existing transaction.
func ensureSubject(ctx context.Context, tx *sqlx.Tx, subjectID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO subjects(
  subject_id, enabled, created_at_ms, updated_at_ms
) VALUES (?, 0, ?, ?);
`, subjectID, nowMs, nowMs); err != nil {
		return errors.Wrapf(err, "ensureSubject %s", subjectID)
	}
	return nil
}
