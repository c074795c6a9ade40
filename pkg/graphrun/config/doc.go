/*
Package config provides type-safe access to loosely typed documents, the
loaders that produce them, and the engine settings read from the
environment.

# Accessors

Node data and graph documents arrive as map[string]any. Config wraps such
a map and extracts values with defaults instead of type assertions:

	cfg := config.New(map[string]any{
	    "title":       "Approve",
	    "retry_config": map[string]any{"max_retries": 2, "retry_interval": 500},
	})

	title := cfg.String("title", "")                  // "Approve"
	retries := cfg.Sub("retry_config").Int("max_retries", 0) // 2

Numbers may be int, int64, float64 or json.Number. Int converts floats only
when they carry no fraction. Duration treats numbers as seconds.

# Loading documents

FromFile picks a decoder from the extension: .yaml/.yml, .json or .hcl.
HCL documents express lists of objects as labelled blocks:

	node "start" {
	  type  = "start"
	  title = "Start"
	}

	edge "start-end" {
	  source = "start"
	  target = "end"
	}

# Settings

EngineSettingsFromEnv reads WORKFLOW_MAX_EXECUTION_STEPS,
WORKFLOW_MAX_EXECUTION_TIME and the GRAPH_ENGINE_* worker pool knobs, and
validates them.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
