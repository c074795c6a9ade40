package config

import (
	"errors"
	"time"
)

// EngineSettings holds the process-wide knobs for running workflow graphs.
type EngineSettings struct {
	MaxExecutionSteps   int
	MaxExecutionTime    time.Duration
	MinWorkers          int
	MaxWorkers          int
	ScaleUpThreshold    int
	ScaleDownIdleTime   time.Duration
	CommandPollInterval time.Duration
}

// DefaultEngineSettings returns the settings used when nothing is configured.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		MaxExecutionSteps:   500,
		MaxExecutionTime:    1200 * time.Second,
		MinWorkers:          1,
		MaxWorkers:          10,
		ScaleUpThreshold:    3,
		ScaleDownIdleTime:   5 * time.Second,
		CommandPollInterval: 100 * time.Millisecond,
	}
}

// EngineSettingsFromEnv reads settings from the environment, falling back to
// DefaultEngineSettings for unset variables. Durations accept Go duration
// strings ("90s") or a plain integer number of seconds.
func EngineSettingsFromEnv() (EngineSettings, error) {
	def := DefaultEngineSettings()
	var (
		cfg  EngineSettings
		errs []error
	)

	cfg.MaxExecutionSteps = envInt("WORKFLOW_MAX_EXECUTION_STEPS", def.MaxExecutionSteps, &errs)
	cfg.MaxExecutionTime = envDuration("WORKFLOW_MAX_EXECUTION_TIME", def.MaxExecutionTime, &errs)
	cfg.MinWorkers = envInt("GRAPH_ENGINE_MIN_WORKERS", def.MinWorkers, &errs)
	cfg.MaxWorkers = envInt("GRAPH_ENGINE_MAX_WORKERS", def.MaxWorkers, &errs)
	cfg.ScaleUpThreshold = envInt("GRAPH_ENGINE_SCALE_UP_THRESHOLD", def.ScaleUpThreshold, &errs)
	cfg.ScaleDownIdleTime = envDuration("GRAPH_ENGINE_SCALE_DOWN_IDLE_TIME", def.ScaleDownIdleTime, &errs)
	cfg.CommandPollInterval = envDuration("GRAPH_ENGINE_COMMAND_POLL_INTERVAL", def.CommandPollInterval, &errs)

	if len(errs) > 0 {
		return EngineSettings{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return EngineSettings{}, err
	}
	return cfg, nil
}

// Validate checks that the settings describe a runnable engine.
func (s EngineSettings) Validate() error {
	var errs []error
	if s.MaxExecutionSteps < 1 {
		errs = append(errs, errors.New("WORKFLOW_MAX_EXECUTION_STEPS must be >= 1"))
	}
	if s.MaxExecutionTime <= 0 {
		errs = append(errs, errors.New("WORKFLOW_MAX_EXECUTION_TIME must be positive"))
	}
	if s.MinWorkers < 1 {
		errs = append(errs, errors.New("GRAPH_ENGINE_MIN_WORKERS must be >= 1"))
	}
	if s.MaxWorkers < s.MinWorkers {
		errs = append(errs, errors.New("GRAPH_ENGINE_MAX_WORKERS must be >= GRAPH_ENGINE_MIN_WORKERS"))
	}
	if s.ScaleUpThreshold < 1 {
		errs = append(errs, errors.New("GRAPH_ENGINE_SCALE_UP_THRESHOLD must be >= 1"))
	}
	if s.ScaleDownIdleTime <= 0 {
		errs = append(errs, errors.New("GRAPH_ENGINE_SCALE_DOWN_IDLE_TIME must be positive"))
	}
	if s.CommandPollInterval <= 0 {
		errs = append(errs, errors.New("GRAPH_ENGINE_COMMAND_POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func envInt(key string, def int, errs *[]error) int {
	v, err := EnvInt(key, def)
	if err != nil {
		*errs = append(*errs, err)
	}
	return v
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v, err := EnvDuration(key, def)
	if err != nil {
		*errs = append(*errs, err)
	}
	return v
}
