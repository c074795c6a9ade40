package observability

import (
	"log/slog"
	"time"
)

// RunLog writes the run-level log lines of one graph run.
type RunLog struct {
	l *slog.Logger
}

// ForRun scopes logger to a run. A nil logger discards everything.
func ForRun(logger *slog.Logger, runID string) RunLog {
	if logger == nil {
		return RunLog{l: slog.New(slog.DiscardHandler)}
	}
	return RunLog{l: logger.With(slog.String("run_id", runID))}
}

// Logger returns the scoped logger.
func (r RunLog) Logger() *slog.Logger { return r.l }

// Started logs the start of the run.
func (r RunLog) Started(reason string) {
	r.l.Info("graph run started", slog.String("reason", reason))
}

// Finished logs a run that ended without error. status is succeeded,
// paused or aborted.
func (r RunLog) Finished(status string, elapsed time.Duration, steps int) {
	r.l.Info("graph run finished",
		slog.String("status", status),
		slog.Duration("elapsed", elapsed),
		slog.Int("steps", steps),
	)
}

// Failed logs a run that ended with err.
func (r RunLog) Failed(err error, elapsed time.Duration) {
	r.l.Error("graph run failed",
		slog.String("error", err.Error()),
		slog.Duration("elapsed", elapsed),
	)
}

// PauseSaved logs a persisted pause snapshot.
func (r RunLog) PauseSaved(sequence int, size int64) {
	r.l.Info("pause state saved",
		slog.Int("sequence", sequence),
		slog.Int64("size_bytes", size),
	)
}

// PauseNotSaved logs a pause snapshot that could not be persisted.
func (r RunLog) PauseNotSaved(err error) {
	r.l.Error("pause state not saved", slog.String("error", err.Error()))
}

// Node scopes the log to one node.
func (r RunLog) Node(nodeID, kind string) NodeLog {
	return NodeLog{
		l:     r.l.With(slog.String("node_id", nodeID), slog.String("node_kind", kind)),
		start: time.Now(),
	}
}

// NodeLog writes the log lines of one node execution. Elapsed times are
// measured from its creation.
type NodeLog struct {
	l     *slog.Logger
	start time.Time
}

// Started logs the first attempt.
func (n NodeLog) Started() {
	n.l.Debug("node started")
}

// Retrying logs a failed attempt that will be repeated after wait.
func (n NodeLog) Retrying(attempt int, wait time.Duration, err error) {
	n.l.Warn("node attempt failed, retrying",
		slog.Int("attempt", attempt),
		slog.Duration("wait", wait),
		slog.String("error", err.Error()),
	)
}

// Succeeded logs a successful execution.
func (n NodeLog) Succeeded(attempts int) {
	n.l.Debug("node succeeded",
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", time.Since(n.start)),
	)
}

// Failed logs an execution whose attempts are exhausted.
func (n NodeLog) Failed(attempts int, err error) {
	n.l.Error("node failed",
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", time.Since(n.start)),
		slog.String("error", err.Error()),
	)
}
