package service

import (
	"context"
	"strings"
	"time"

	"github.com/hadir-sekolah/presensi/internal/presensi/store"
)

type SubjectRegistry struct {
	store store.SubjectStore
}

func NewSubjectRegistry(st store.SubjectStore) *SubjectRegistry {
	return &SubjectRegistry{store: st}
}

func (r *SubjectRegistry) IsKnown(ctx context.Context, subjectID string) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, nil
	}
	return r.store.IsKnown(ctx, subjectID)
}

func (r *SubjectRegistry) NoteSeen(ctx context.Context, subjectID string) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, subjectID, time.Now().UTC())
}

// Require trims subjectID and fails unless it names a known subject.
func (r *SubjectRegistry) Require(ctx context.Context, subjectID string) (string, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", ErrInvalidSubject
	}
	known, err := r.IsKnown(ctx, subjectID)
	if err != nil {
		return "", err
	}
	if !known {
		return subjectID, ErrUnknownSubject
	}
	return subjectID, nil
}
