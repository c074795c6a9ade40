package engine

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/command"
	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/layer"
)

// engineConfig holds configuration for a run.
type engineConfig struct {
	channel          command.Channel
	layers           []layer.Layer
	logger           *slog.Logger
	minWorkers       int
	maxWorkers       int
	scaleUpThreshold int
	scaleDownIdle    time.Duration
	pollInterval     time.Duration
	executionID      string
	reason           event.StartReason
}

// defaultConfig returns the default engine configuration.
func defaultConfig() engineConfig {
	s := config.DefaultEngineSettings()
	return engineConfig{
		logger:           slog.Default(),
		minWorkers:       s.MinWorkers,
		maxWorkers:       s.MaxWorkers,
		scaleUpThreshold: s.ScaleUpThreshold,
		scaleDownIdle:    s.ScaleDownIdleTime,
		pollInterval:     s.CommandPollInterval,
		reason:           event.ReasonInitial,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithCommandChannel sets the channel the engine polls for commands.
// Default: a new command.InMemoryChannel.
func WithCommandChannel(ch command.Channel) Option {
	return func(c *engineConfig) {
		c.channel = ch
	}
}

// WithLayers appends layers. They are called in the order given.
func WithLayers(layers ...layer.Layer) Option {
	return func(c *engineConfig) {
		c.layers = append(c.layers, layers...)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkers bounds the worker pool. Values below 1 are raised to 1 and
// max is raised to min.
func WithWorkers(minWorkers, maxWorkers int) Option {
	return func(c *engineConfig) {
		c.minWorkers = max(minWorkers, 1)
		c.maxWorkers = max(maxWorkers, c.minWorkers)
	}
}

// WithScaleUpThreshold sets the ready-queue depth above which a worker is
// added.
func WithScaleUpThreshold(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.scaleUpThreshold = n
		}
	}
}

// WithScaleDownIdleTime sets how long a worker above the minimum may idle
// before it exits.
func WithScaleDownIdleTime(d time.Duration) Option {
	return func(c *engineConfig) {
		if d > 0 {
			c.scaleDownIdle = d
		}
	}
}

// WithCommandPollInterval sets how often the command channel is polled
// while nodes run.
func WithCommandPollInterval(d time.Duration) Option {
	return func(c *engineConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSettings applies the worker and polling knobs of s.
func WithSettings(s config.EngineSettings) Option {
	return func(c *engineConfig) {
		WithWorkers(s.MinWorkers, s.MaxWorkers)(c)
		WithScaleUpThreshold(s.ScaleUpThreshold)(c)
		WithScaleDownIdleTime(s.ScaleDownIdleTime)(c)
		WithCommandPollInterval(s.CommandPollInterval)(c)
	}
}

// WithExecutionID sets the id stamped on every event. Default: a new UUID.
func WithExecutionID(id string) Option {
	return func(c *engineConfig) {
		c.executionID = id
	}
}

// WithStartReason sets the reason carried by GraphRunStarted.
func WithStartReason(r event.StartReason) Option {
	return func(c *engineConfig) {
		if r != "" {
			c.reason = r
		}
	}
}
