package memory

import (
	"context"
	"sync"
	"time"
)

type SettingsStore struct {
	mu sync.RWMutex
	kv map[string]string
}

// NewSettingsStore copies seed into a new store.
func NewSettingsStore(seed map[string]string) *SettingsStore {
	kv := make(map[string]string, len(seed))
	for k, v := range seed {
		if v != "" {
			kv[k] = v
		}
	}
	return &SettingsStore{kv: kv}
}

func (s *SettingsStore) All(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.kv))
	for k, v := range s.kv {
		out[k] = v
	}
	return out, nil
}

func (s *SettingsStore) Put(_ context.Context, kv map[string]string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv {
		if v == "" {
			delete(s.kv, k)
			continue
		}
		s.kv[k] = v
	}
	return nil
}
