package store

import (
	"context"
	"time"
)

// SubjectStore answers whether a subject may record attendance.
type SubjectStore interface {
	IsKnown(ctx context.Context, subjectID string) (bool, error)
	MarkSeen(ctx context.Context, subjectID string, t time.Time) error
}
