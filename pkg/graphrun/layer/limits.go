package layer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/command"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
)

type limitStatus int

const (
	limitNotStarted limitStatus = iota
	limitRunning
	limitEnded
)

// ExecutionLimits aborts a run that starts more than maxSteps nodes or
// runs longer than maxTime. A zero limit is not enforced.
//
// Steps are counted on NodeRunStarted events. Limits are checked on every
// event between OnGraphStart and OnGraphEnd, and the first violation sends
// a single abort command.
type ExecutionLimits struct {
	Base

	maxSteps int
	maxTime  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	status    limitStatus
	steps     int
	startedAt time.Time
	aborted   bool
}

// LimitOption configures ExecutionLimits.
type LimitOption func(*ExecutionLimits)

// WithLimitLogger sets the logger for violations and send failures.
func WithLimitLogger(logger *slog.Logger) LimitOption {
	return func(l *ExecutionLimits) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LimitOption {
	return func(l *ExecutionLimits) {
		if now != nil {
			l.now = now
		}
	}
}

// NewExecutionLimits returns a layer enforcing the given budgets.
func NewExecutionLimits(maxSteps int, maxTime time.Duration, opts ...LimitOption) *ExecutionLimits {
	l := &ExecutionLimits{
		maxSteps: maxSteps,
		maxTime:  maxTime,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnGraphStart starts the clock and resets the step count.
func (l *ExecutionLimits) OnGraphStart(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = limitRunning
	l.steps = 0
	l.startedAt = l.now()
	l.aborted = false
}

// OnEvent counts steps and checks the limits.
func (l *ExecutionLimits) OnEvent(ctx context.Context, e event.Event) {
	reason, ok := l.check(e)
	if !ok {
		return
	}

	l.logger.Warn("execution limit exceeded, aborting run",
		slog.String("run_id", e.ExecutionID()),
		slog.String("reason", reason),
	)

	ch := l.CommandChannel()
	if ch == nil {
		l.logger.Error("cannot abort run: no command channel",
			slog.String("run_id", e.ExecutionID()))
		return
	}
	if err := ch.SendCommand(ctx, command.Abort(reason)); err != nil {
		l.logger.Error("cannot abort run: send failed",
			slog.String("run_id", e.ExecutionID()),
			slog.String("error", err.Error()),
		)
	}
}

// check updates the step count and reports the first violation.
func (l *ExecutionLimits) check(e event.Event) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != limitRunning {
		return "", false
	}
	if _, ok := e.(event.NodeRunStarted); ok {
		l.steps++
	}
	if l.aborted {
		return "", false
	}

	var reason string
	switch {
	case l.maxSteps > 0 && l.steps > l.maxSteps:
		reason = fmt.Sprintf("max execution steps %d exceeded", l.maxSteps)
	case l.maxTime > 0 && l.now().Sub(l.startedAt) > l.maxTime:
		reason = fmt.Sprintf("max execution time %s exceeded", l.maxTime)
	default:
		return "", false
	}
	l.aborted = true
	return reason, true
}

// OnGraphEnd stops checking.
func (l *ExecutionLimits) OnGraphEnd(context.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = limitEnded
}

// Steps returns the number of nodes started since OnGraphStart.
func (l *ExecutionLimits) Steps() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.steps
}

// Aborted reports whether a limit was exceeded.
func (l *ExecutionLimits) Aborted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aborted
}
