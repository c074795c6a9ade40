// Package layer provides hooks that observe a graph run and may steer it
// through the command channel.
//
// The engine calls every layer in registration order: Initialize once
// before the run, OnGraphStart, OnEvent for each event before it reaches
// the caller, and OnGraphEnd after the terminal event. A panicking layer is
// logged and skipped; it never stops the run.
package layer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/randalmurphal/graphrun/pkg/graphrun/command"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// Layer observes one run.
type Layer interface {
	Initialize(state *runtime.State, ch command.Channel)
	OnGraphStart(ctx context.Context)
	OnEvent(ctx context.Context, e event.Event)
	OnGraphEnd(ctx context.Context, err error)
}

// Base implements Layer with no-ops and keeps what Initialize receives.
// Embed it and override the hooks you need.
type Base struct {
	state   *runtime.State
	channel command.Channel
}

// Initialize stores the run's state and command channel.
func (b *Base) Initialize(state *runtime.State, ch command.Channel) {
	b.state = state
	b.channel = ch
}

// RuntimeState returns the state passed to Initialize.
func (b *Base) RuntimeState() *runtime.State { return b.state }

// CommandChannel returns the channel passed to Initialize.
func (b *Base) CommandChannel() command.Channel { return b.channel }

// OnGraphStart does nothing.
func (*Base) OnGraphStart(context.Context) {}

// OnEvent does nothing.
func (*Base) OnEvent(context.Context, event.Event) {}

// OnGraphEnd does nothing.
func (*Base) OnGraphEnd(context.Context, error) {}

// Stack calls a list of layers in order, recovering panics.
type Stack struct {
	layers []Layer
	logger *slog.Logger
}

// NewStack returns a Stack over layers. Nil entries are dropped.
func NewStack(logger *slog.Logger, layers ...Layer) *Stack {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stack{logger: logger}
	for _, l := range layers {
		if l != nil {
			s.layers = append(s.layers, l)
		}
	}
	return s
}

// Len returns the number of layers.
func (s *Stack) Len() int { return len(s.layers) }

// Initialize calls Initialize on every layer.
func (s *Stack) Initialize(state *runtime.State, ch command.Channel) {
	for _, l := range s.layers {
		s.guard(l, "initialize", func() { l.Initialize(state, ch) })
	}
}

// OnGraphStart calls OnGraphStart on every layer.
func (s *Stack) OnGraphStart(ctx context.Context) {
	for _, l := range s.layers {
		s.guard(l, "graph start", func() { l.OnGraphStart(ctx) })
	}
}

// OnEvent calls OnEvent on every layer.
func (s *Stack) OnEvent(ctx context.Context, e event.Event) {
	for _, l := range s.layers {
		s.guard(l, e.Type(), func() { l.OnEvent(ctx, e) })
	}
}

// OnGraphEnd calls OnGraphEnd on every layer.
func (s *Stack) OnGraphEnd(ctx context.Context, err error) {
	for _, l := range s.layers {
		s.guard(l, "graph end", func() { l.OnGraphEnd(ctx, err) })
	}
}

func (s *Stack) guard(l Layer, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("layer panicked",
				slog.String("layer", fmt.Sprintf("%T", l)),
				slog.String("hook", hook),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}
