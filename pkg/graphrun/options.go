package graphrun

import (
	"log/slog"

	"github.com/randalmurphal/graphrun/pkg/graphrun/command"
	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/layer"
	"github.com/randalmurphal/graphrun/pkg/graphrun/observability"
	"github.com/randalmurphal/graphrun/pkg/graphrun/pausestore"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// entryConfig holds configuration for an Entry.
type entryConfig struct {
	settings  config.EngineSettings
	logger    *slog.Logger
	channel   command.Channel
	layers    []layer.Layer
	repo      pausestore.Repository
	codecOpts []variable.CodecOption
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	reason    event.StartReason
}

func defaultEntryConfig() entryConfig {
	return entryConfig{
		settings: config.DefaultEngineSettings(),
		logger:   slog.Default(),
		reason:   event.ReasonInitial,
	}
}

func newEntryConfig(opts []EntryOption) entryConfig {
	cfg := defaultEntryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// EntryOption configures an Entry.
type EntryOption func(*entryConfig)

// WithSettings sets execution limits and worker pool knobs.
// Default: config.DefaultEngineSettings().
//
// Example:
//
//	settings, err := config.EngineSettingsFromEnv()
//	if err != nil {
//	    return err
//	}
//	entry, err := graphrun.NewEntry(params, g, state, graphrun.WithSettings(settings))
func WithSettings(s config.EngineSettings) EntryOption {
	return func(c *entryConfig) {
		c.settings = s
	}
}

// WithLogger sets the logger used by the engine and default layers.
func WithLogger(logger *slog.Logger) EntryOption {
	return func(c *entryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCommandChannel sets the channel used to deliver commands to the run.
// Use a command.DistributedChannel when aborts come from other processes.
func WithCommandChannel(ch command.Channel) EntryOption {
	return func(c *entryConfig) {
		c.channel = ch
	}
}

// WithLayers appends layers after the default ones.
func WithLayers(layers ...layer.Layer) EntryOption {
	return func(c *entryConfig) {
		c.layers = append(c.layers, layers...)
	}
}

// WithPauseRepository enables pause persistence. Every GraphRunPaused is
// saved to repo so the run can be resumed later.
func WithPauseRepository(repo pausestore.Repository) EntryOption {
	return func(c *entryConfig) {
		c.repo = repo
	}
}

// WithSnapshotOptions sets the codec options used to dump and restore
// runtime state, such as a secret sealer.
func WithSnapshotOptions(opts ...variable.CodecOption) EntryOption {
	return func(c *entryConfig) {
		c.codecOpts = append(c.codecOpts, opts...)
	}
}

// WithMetrics enables the observability layer recording into m.
func WithMetrics(m *observability.Metrics) EntryOption {
	return func(c *entryConfig) {
		c.metrics = m
	}
}

// WithTracing enables the observability layer, starting spans on t.
func WithTracing(t *observability.Tracer) EntryOption {
	return func(c *entryConfig) {
		c.tracer = t
	}
}

func withStartReason(r event.StartReason) EntryOption {
	return func(c *entryConfig) {
		c.reason = r
	}
}
