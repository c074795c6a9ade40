package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Transport is a key-addressed message store shared between processes.
type Transport interface {
	// Publish appends msg to the queue at key.
	Publish(ctx context.Context, key string, msg []byte) error

	// Poll atomically removes and returns every message queued at key.
	Poll(ctx context.Context, key string) ([][]byte, error)
}

// ChannelKey returns the transport key for a run's commands.
func ChannelKey(runID string) string {
	return "workflow:" + runID + ":commands"
}

// DistributedChannel is a Channel over a Transport. Any process that
// knows the run id can send to it.
type DistributedChannel struct {
	transport Transport
	key       string
	logger    *slog.Logger
}

// DistributedOption configures a DistributedChannel.
type DistributedOption func(*DistributedChannel)

// WithLogger sets the logger used for undecodable messages.
func WithLogger(logger *slog.Logger) DistributedOption {
	return func(c *DistributedChannel) {
		c.logger = logger
	}
}

// NewDistributedChannel creates the channel for runID over transport.
func NewDistributedChannel(transport Transport, runID string, opts ...DistributedOption) *DistributedChannel {
	c := &DistributedChannel{
		transport: transport,
		key:       ChannelKey(runID),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the transport key.
func (c *DistributedChannel) Key() string {
	return c.key
}

// SendCommand implements Channel.
func (c *DistributedChannel) SendCommand(ctx context.Context, cmd Command) error {
	data, err := Encode(cmd)
	if err != nil {
		return err
	}
	if err := c.transport.Publish(ctx, c.key, data); err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	return nil
}

// FetchCommands implements Channel. Messages that do not decode are
// logged and dropped.
func (c *DistributedChannel) FetchCommands(ctx context.Context) ([]Command, error) {
	msgs, err := c.transport.Poll(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("poll commands: %w", err)
	}
	out := make([]Command, 0, len(msgs))
	for _, msg := range msgs {
		cmd, err := Decode(msg)
		if err != nil {
			c.logger.Warn("dropping malformed command", "key", c.key, "error", err)
			continue
		}
		out = append(out, cmd)
	}
	return out, nil
}

// MemoryTransport is an in-process Transport for tests and single-node
// deployments.
type MemoryTransport struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

// NewMemoryTransport creates an empty transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{queues: make(map[string][][]byte)}
}

// Publish implements Transport.
func (t *MemoryTransport) Publish(_ context.Context, key string, msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queues[key] = append(t.queues[key], append([]byte(nil), msg...))
	return nil
}

// Poll implements Transport.
func (t *MemoryTransport) Poll(_ context.Context, key string) ([][]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.queues[key]
	delete(t.queues, key)
	return msgs, nil
}
