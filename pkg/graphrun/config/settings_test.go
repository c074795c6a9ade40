package config_test

import (
	"testing"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineSettingsFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"WORKFLOW_MAX_EXECUTION_STEPS", "WORKFLOW_MAX_EXECUTION_TIME",
		"GRAPH_ENGINE_MIN_WORKERS", "GRAPH_ENGINE_MAX_WORKERS",
		"GRAPH_ENGINE_SCALE_UP_THRESHOLD", "GRAPH_ENGINE_SCALE_DOWN_IDLE_TIME",
		"GRAPH_ENGINE_COMMAND_POLL_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := config.EngineSettingsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEngineSettings(), cfg)
	assert.Equal(t, 500, cfg.MaxExecutionSteps)
	assert.Equal(t, 1200*time.Second, cfg.MaxExecutionTime)
}

func TestEngineSettingsFromEnv_Overrides(t *testing.T) {
	t.Setenv("WORKFLOW_MAX_EXECUTION_STEPS", "20")
	t.Setenv("WORKFLOW_MAX_EXECUTION_TIME", "60")
	t.Setenv("GRAPH_ENGINE_MIN_WORKERS", "2")
	t.Setenv("GRAPH_ENGINE_MAX_WORKERS", "4")
	t.Setenv("GRAPH_ENGINE_SCALE_DOWN_IDLE_TIME", "750ms")

	cfg, err := config.EngineSettingsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.MaxExecutionSteps)
	assert.Equal(t, time.Minute, cfg.MaxExecutionTime)
	assert.Equal(t, 2, cfg.MinWorkers)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, 750*time.Millisecond, cfg.ScaleDownIdleTime)
}

func TestEngineSettingsFromEnv_Errors(t *testing.T) {
	t.Setenv("WORKFLOW_MAX_EXECUTION_STEPS", "many")
	t.Setenv("GRAPH_ENGINE_COMMAND_POLL_INTERVAL", "often")

	_, err := config.EngineSettingsFromEnv()
	require.Error(t, err)
	assert.ErrorContains(t, err, "WORKFLOW_MAX_EXECUTION_STEPS")
	assert.ErrorContains(t, err, "GRAPH_ENGINE_COMMAND_POLL_INTERVAL")
}

func TestEngineSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.EngineSettings)
		errMsg string
	}{
		{"valid", func(*config.EngineSettings) {}, ""},
		{"zero steps", func(s *config.EngineSettings) { s.MaxExecutionSteps = 0 }, "WORKFLOW_MAX_EXECUTION_STEPS"},
		{"zero time", func(s *config.EngineSettings) { s.MaxExecutionTime = 0 }, "WORKFLOW_MAX_EXECUTION_TIME"},
		{"max below min", func(s *config.EngineSettings) { s.MinWorkers, s.MaxWorkers = 3, 2 }, "GRAPH_ENGINE_MAX_WORKERS"},
		{"zero threshold", func(s *config.EngineSettings) { s.ScaleUpThreshold = 0 }, "GRAPH_ENGINE_SCALE_UP_THRESHOLD"},
		{"zero poll", func(s *config.EngineSettings) { s.CommandPollInterval = 0 }, "GRAPH_ENGINE_COMMAND_POLL_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.DefaultEngineSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GRAPHRUN_TEST_STR", "value")
	t.Setenv("GRAPHRUN_TEST_BOOL", "true")
	t.Setenv("GRAPHRUN_TEST_BAD_BOOL", "maybe")
	t.Setenv("GRAPHRUN_TEST_INT", "7")
	t.Setenv("GRAPHRUN_TEST_DUR", "2m")

	assert.Equal(t, "value", config.EnvString("GRAPHRUN_TEST_STR", "def"))
	assert.Equal(t, "def", config.EnvString("GRAPHRUN_TEST_UNSET", "def"))

	b, err := config.EnvBool("GRAPHRUN_TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, b)
	_, err = config.EnvBool("GRAPHRUN_TEST_BAD_BOOL", false)
	assert.ErrorContains(t, err, "GRAPHRUN_TEST_BAD_BOOL")

	i, err := config.EnvInt("GRAPHRUN_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 7, i)

	d, err := config.EnvDuration("GRAPHRUN_TEST_DUR", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
}
