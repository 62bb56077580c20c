package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

type SubjectStore struct {
	mu    sync.RWMutex
	known map[string]struct{}
	seen  map[string]time.Time
}

func NewSubjectStore(knownSubjects []string) *SubjectStore {
	k := make(map[string]struct{}, len(knownSubjects))
	for _, id := range knownSubjects {
		id = strings.TrimSpace(id)
		if id != "" {
			k[id] = struct{}{}
		}
	}
	return &SubjectStore{
		known: k,
		seen:  make(map[string]time.Time),
	}
}

func (s *SubjectStore) IsKnown(_ context.Context, subjectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.known[subjectID]
	return ok, nil
}

func (s *SubjectStore) MarkSeen(_ context.Context, subjectID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[subjectID] = t
	return nil
}

// LastSeen reports when subjectID was last marked seen.
func (s *SubjectStore) LastSeen(subjectID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.seen[subjectID]
	return t, ok
}
