package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coding-eval/internal/model"
)

func TestSettings_PutAndLoad(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	s := NewSettings(st)
	assert.True(t, s.Put(ctx, model.SettingModel, "claude-opus-4-1-20250805").Durable())
	assert.True(t, s.Put(ctx, model.SettingActivePrompt, "Improved v2").Durable())

	reloaded := NewSettings(st)
	require.NoError(t, reloaded.Load(ctx, model.SettingModel, model.SettingActivePrompt, "unknown"))
	v, ok := reloaded.Get(model.SettingModel)
	require.True(t, ok)
	assert.Equal(t, "claude-opus-4-1-20250805", v)
	_, ok = reloaded.Get("unknown")
	assert.False(t, ok)
	assert.Len(t, reloaded.All(), 2)
}

func TestSettings_GetOr(t *testing.T) {
	s := NewSettings(newTestStore(t))
	assert.Equal(t, "fallback", s.GetOr(model.SettingModel, "fallback"))
	s.Put(context.Background(), model.SettingModel, "  ")
	assert.Equal(t, "fallback", s.GetOr(model.SettingModel, "fallback"))
	s.Put(context.Background(), model.SettingModel, "m")
	assert.Equal(t, "m", s.GetOr(model.SettingModel, "fallback"))
}

func TestSettings_LocalOnly(t *testing.T) {
	s := NewSettings(downStore{})
	synced := s.Put(context.Background(), model.SettingActivePrompt, "Draft")
	assert.False(t, synced.Durable())
	v, _ := s.Get(model.SettingActivePrompt)
	assert.Equal(t, "Draft", v)

	assert.Error(t, s.Load(context.Background(), model.SettingModel))
}
