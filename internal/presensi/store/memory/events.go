package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hadir-sekolah/presensi/internal/presensi/store"
)

// SubmissionEventStore is an in-memory append-only log of submission
// decisions. It is intended for use in tests and dev environments.
type SubmissionEventStore struct {
	mu     sync.Mutex
	events []store.SubmissionEvent
}

func NewSubmissionEventStore() *SubmissionEventStore {
	return &SubmissionEventStore{}
}

func (s *SubmissionEventStore) RecordEvent(_ context.Context, ev store.SubmissionEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *SubmissionEventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.ReceivedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *SubmissionEventStore) Events() []store.SubmissionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.SubmissionEvent, len(s.events))
	copy(out, s.events)
	return out
}
