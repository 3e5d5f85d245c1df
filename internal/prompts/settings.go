package prompts

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/store"
)

// Settings mirrors the flat key-value settings store in memory.
type Settings struct {
	store store.SettingStore

	mu     sync.RWMutex
	values map[string]string
}

// NewSettings creates an empty settings mirror backed by st.
func NewSettings(st store.SettingStore) *Settings {
	return &Settings{store: st, values: make(map[string]string)}
}

// Load reads the given keys from the store. Missing keys stay unset.
func (s *Settings) Load(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		v, ok, err := s.store.GetSetting(ctx, key)
		if err != nil {
			return eris.Wrapf(err, "settings: load %s", key)
		}
		if !ok {
			continue
		}
		s.mu.Lock()
		s.values[key] = v
		s.mu.Unlock()
	}
	return nil
}

// Get returns the value for key.
func (s *Settings) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetOr returns the value for key, or def when it is unset or blank.
func (s *Settings) GetOr(key, def string) string {
	if v, ok := s.Get(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Put sets key locally and writes it through to the store.
func (s *Settings) Put(ctx context.Context, key, value string) model.Sync {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	if err := s.store.PutSetting(ctx, key, value); err != nil {
		zap.L().Warn("settings: stored locally only", zap.String("key", key), zap.Error(err))
		return model.LocalOnly(err)
	}
	return model.Committed()
}

// All returns a copy of every loaded or written setting.
func (s *Settings) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
