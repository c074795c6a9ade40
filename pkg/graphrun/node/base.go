package node

import (
	"fmt"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	gerrors "github.com/randalmurphal/graphrun/pkg/graphrun/errors"
)

// ErrorStrategy decides what happens to the run when a node fails.
type ErrorStrategy string

// Error strategies.
const (
	// StrategyFailRun fails the whole run. It is the default.
	StrategyFailRun ErrorStrategy = ""

	// StrategyFailBranch records the error and follows the fail-branch handle.
	StrategyFailBranch ErrorStrategy = "fail-branch"

	// StrategyDefaultValue commits DefaultValues and follows the source handle.
	StrategyDefaultValue ErrorStrategy = "default-value"
)

// String returns the strategy name.
func (s ErrorStrategy) String() string {
	if s == StrategyFailRun {
		return "fail-run"
	}
	return string(s)
}

// RetryConfig is the per-node retry policy from the retry_config block.
type RetryConfig struct {
	Enabled    bool
	MaxRetries int
	Interval   time.Duration
}

// Policy returns the retry policy for the node: a fixed interval between
// attempts, retrying every failure except run cancellation.
func (r RetryConfig) Policy() gerrors.Policy {
	if !r.Enabled || r.MaxRetries <= 0 {
		return gerrors.Once
	}
	return gerrors.Fixed(r.MaxRetries+1, r.Interval)
}

// Base implements the bookkeeping methods of Node from common node data:
//
//	title, type, error_strategy, default_value, retry_config
//
// Embed it in node implementations.
type Base struct {
	id       string
	kind     Kind
	title    string
	strategy ErrorStrategy
	retry    RetryConfig
	defaults map[string]any
}

// NewBase parses the common fields of a node's data.
func NewBase(id string, kind Kind, data config.Config) (Base, error) {
	b := Base{
		id:    id,
		kind:  kind,
		title: data.String("title", id),
	}

	switch s := ErrorStrategy(data.String("error_strategy", "")); s {
	case StrategyFailRun, StrategyFailBranch, StrategyDefaultValue:
		b.strategy = s
	case "none", "fail-run":
		b.strategy = StrategyFailRun
	default:
		return Base{}, fmt.Errorf("%w: node %s: unknown error_strategy %q", ErrInvalidConfig, id, s)
	}

	defaults, err := parseDefaults(data)
	if err != nil {
		return Base{}, fmt.Errorf("%w: node %s: %w", ErrInvalidConfig, id, err)
	}
	if b.strategy == StrategyDefaultValue && len(defaults) == 0 {
		return Base{}, fmt.Errorf("%w: node %s: default-value strategy requires default_value", ErrInvalidConfig, id)
	}
	b.defaults = defaults

	retry := data.Sub("retry_config")
	b.retry = RetryConfig{
		Enabled:    retry.Bool("retry_enabled", false),
		MaxRetries: retry.Int("max_retries", 0),
		Interval:   time.Duration(retry.Int("retry_interval", 0)) * time.Millisecond,
	}
	if b.retry.MaxRetries < 0 || b.retry.Interval < 0 {
		return Base{}, fmt.Errorf("%w: node %s: retry_config values must be >= 0", ErrInvalidConfig, id)
	}
	return b, nil
}

// parseDefaults accepts default_value as a map or as a list of
// {key, value} entries.
func parseDefaults(data config.Config) (map[string]any, error) {
	switch raw := data.Any("default_value", nil).(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return raw, nil
	case []any:
		out := make(map[string]any, len(raw))
		for _, entry := range data.List("default_value") {
			key := entry.String("key", "")
			if key == "" {
				return nil, fmt.Errorf("default_value entry without key")
			}
			out[key] = entry.Any("value", nil)
		}
		if len(out) != len(raw) {
			return nil, fmt.Errorf("default_value entries must be objects with unique keys")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("default_value must be an object or a list, got %T", raw)
	}
}

// ID returns the node id.
func (b Base) ID() string { return b.id }

// Kind returns the node kind.
func (b Base) Kind() Kind { return b.kind }

// Title returns the display title.
func (b Base) Title() string { return b.title }

// ErrorStrategy returns the configured error strategy.
func (b Base) ErrorStrategy() ErrorStrategy { return b.strategy }

// RetryConfig returns the configured retry policy.
func (b Base) RetryConfig() RetryConfig { return b.retry }

// DefaultValues returns a copy of the default outputs.
func (b Base) DefaultValues() map[string]any {
	if b.defaults == nil {
		return nil
	}
	out := make(map[string]any, len(b.defaults))
	for k, v := range b.defaults {
		out[k] = v
	}
	return out
}
