package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/capture"
	"github.com/hadir-sekolah/presensi/internal/presensi/store"
	"github.com/hadir-sekolah/presensi/internal/presensi/types"
)

// SettingsService reads and updates the attendance settings. Updates are
// checked with the same parser agents use, so a stored configuration is
// always one agents can act on.
type SettingsService struct {
	store store.SettingsStore
	now   func() time.Time
}

func NewSettingsService(st store.SettingsStore) *SettingsService {
	return &SettingsService{store: st, now: time.Now}
}

func (s *SettingsService) Get(ctx context.Context) (types.Settings, error) {
	kv, err := s.store.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	return types.Settings(kv), nil
}

// Parsed loads and parses the stored settings.
func (s *SettingsService) Parsed(ctx context.Context) (capture.Settings, error) {
	kv, err := s.Get(ctx)
	if err != nil {
		return capture.Settings{}, err
	}
	parsed, err := capture.ParseSettings(kv)
	if err != nil {
		return capture.Settings{}, errors.Wrap(err, "stored settings")
	}
	return parsed, nil
}

// Put merges kv into the stored settings. Unknown keys and values that
// would not parse are reported as types.FieldErrors and nothing is saved.
// An empty value clears the key.
func (s *SettingsService) Put(ctx context.Context, kv map[string]string) (types.Settings, error) {
	bad := types.FieldErrors{}
	clean := make(map[string]string, len(kv))
	for k, v := range kv {
		k = strings.TrimSpace(k)
		if !knownSetting(k) {
			bad[k] = k + " is not a known setting"
			continue
		}
		clean[k] = strings.TrimSpace(v)
	}
	if len(bad) > 0 {
		return nil, bad
	}

	current, err := s.store.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	for k, v := range clean {
		if v == "" {
			delete(current, k)
			continue
		}
		current[k] = v
	}

	if _, err := capture.ParseSettings(current); err != nil {
		var se *capture.SettingsError
		if errors.As(err, &se) {
			return nil, types.FieldErrors(se.Fields)
		}
		return nil, err
	}

	if err := s.store.Put(ctx, clean, s.now().UTC()); err != nil {
		return nil, errors.Wrap(err, "save settings")
	}
	return types.Settings(current), nil
}

func knownSetting(k string) bool {
	i := sort.SearchStrings(sortedSettingKeys, k)
	return i < len(sortedSettingKeys) && sortedSettingKeys[i] == k
}

var sortedSettingKeys = func() []string {
	keys := append([]string(nil), capture.SettingKeys...)
	sort.Strings(keys)
	return keys
}()
