package opconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().Limits, cfg.Limits)
	assert.False(t, cfg.Headless)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Headless: true, Debug: true, Limits: Limits{
		MaxSteps: 10, NoOpStreakMax: 1, RejectThreshold: 2, ApprovalTimeoutSeconds: 60,
	}}
	require.NoError(t, Save(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Headless, loaded.Headless)
	assert.Equal(t, cfg.Debug, loaded.Debug)
	assert.Equal(t, cfg.Limits, loaded.Limits)
}

func TestLoad_EnvOverridesHeadless(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPERON_HEADLESS", "true")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Headless)
}

func TestLoad_ZeroLimitsBackfilledFromDefault(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Limits: Limits{MaxSteps: 5}}
	require.NoError(t, Save(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Limits.MaxSteps)
	assert.Equal(t, Default().Limits.NoOpStreakMax, loaded.Limits.NoOpStreakMax)
	assert.Equal(t, Default().Limits.RejectThreshold, loaded.Limits.RejectThreshold)
}
