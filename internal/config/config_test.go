package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRIAGE_STRICT_LIFECYCLE", "")
	t.Setenv("TRIAGE_AUTO_ROUTE", "")
	t.Setenv("TRIAGE_REROUTE_SCHEDULE", "")
	t.Setenv("TRIAGE_EXTENDED_HEURISTICS_ON_CREATE", "")
	t.Setenv("TRIAGE_METRICS_CACHE_TTL_SECONDS", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Triage.StrictLifecycle)
	assert.False(t, cfg.Triage.ExtendedHeuristicsOnCreate)
	assert.True(t, cfg.Triage.AutoRoute)
	assert.Equal(t, "*/5 * * * *", cfg.Triage.RerouteSchedule)
	assert.Equal(t, time.Minute, cfg.Triage.MetricsCacheTTL())
}

func TestLoadTriageOverrides(t *testing.T) {
	t.Setenv("TRIAGE_STRICT_LIFECYCLE", "true")
	t.Setenv("TRIAGE_EXTENDED_HEURISTICS_ON_CREATE", "1")
	t.Setenv("TRIAGE_AUTO_ROUTE", "false")
	t.Setenv("TRIAGE_REROUTE_CONCURRENCY", "9")
	t.Setenv("TRIAGE_METRICS_CACHE_TTL_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Triage.StrictLifecycle)
	assert.True(t, cfg.Triage.ExtendedHeuristicsOnCreate)
	assert.False(t, cfg.Triage.AutoRoute)
	assert.Equal(t, 9, cfg.Triage.RerouteConcurrency)
	assert.Equal(t, time.Duration(0), cfg.Triage.MetricsCacheTTL())
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidIntFallsBack(t *testing.T) {
	t.Setenv("TRIAGE_REROUTE_CONCURRENCY", "many")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Triage.RerouteConcurrency)
}

func TestRedisCanBeDisabled(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("REDIS_EVENTS_CHANNEL", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "triage.events", cfg.Redis.EventsChannel)
}
