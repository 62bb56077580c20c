package store

import (
	"context"
	"time"
)

// SettingsStore holds the flat attendance settings.
type SettingsStore interface {
	All(ctx context.Context) (map[string]string, error)
	// Put upserts every key in kv. An empty value deletes the key.
	Put(ctx context.Context, kv map[string]string, at time.Time) error
}
