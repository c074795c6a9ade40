// Package command carries control-plane instructions into a running
// engine.
//
// Senders and the engine share a Channel. The engine drains it between
// dispatch cycles, so a command is observed with bounded but not
// instantaneous latency. Delivery is at-least-once; the engine treats a
// repeated abort as a no-op.
//
// Two channels are provided: InMemoryChannel for runs whose sender lives in
// the same process, and DistributedChannel for senders in other processes,
// backed by a Transport such as RedisTransport.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a command.
type Type string

// Command types.
const (
	TypeAbort Type = "abort"
)

// ErrInvalidCommand is returned when a command cannot be sent or decoded.
var ErrInvalidCommand = errors.New("invalid command")

// Command is an instruction to a running engine.
type Command struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// Abort returns a command that stops the run.
func Abort(reason string) Command {
	return Command{
		ID:       "cmd-" + uuid.NewString(),
		Type:     TypeAbort,
		Reason:   reason,
		IssuedAt: time.Now().UTC(),
	}
}

// Validate reports whether c can be delivered.
func (c Command) Validate() error {
	switch c.Type {
	case TypeAbort:
		return nil
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidCommand)
	}
	return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, c.Type)
}

// Encode returns the wire form of c.
func Encode(c Command) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// Decode parses the wire form of a command.
func Decode(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}

// Channel delivers commands to one run.
type Channel interface {
	// SendCommand enqueues c for the engine to observe on its next poll.
	SendCommand(ctx context.Context, c Command) error

	// FetchCommands drains every pending command without blocking.
	FetchCommands(ctx context.Context) ([]Command, error)
}

// InMemoryChannel is a mutex-guarded queue for single-process runs.
type InMemoryChannel struct {
	mu      sync.Mutex
	pending []Command
}

// NewInMemoryChannel creates an empty channel.
func NewInMemoryChannel() *InMemoryChannel {
	return &InMemoryChannel{}
}

// SendCommand implements Channel.
func (c *InMemoryChannel) SendCommand(_ context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, cmd)
	return nil
}

// FetchCommands implements Channel.
func (c *InMemoryChannel) FetchCommands(context.Context) ([]Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out, nil
}
