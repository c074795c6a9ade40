package command_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/graphrun/pkg/graphrun/command"
)

func TestAbort(t *testing.T) {
	c := command.Abort("user stopped")
	assert.Equal(t, command.TypeAbort, c.Type)
	assert.Equal(t, "user stopped", c.Reason)
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.IssuedAt.IsZero())
	assert.NoError(t, c.Validate())
}

func TestEncodeDecode(t *testing.T) {
	c := command.Abort("limit")
	data, err := command.Encode(c)
	require.NoError(t, err)

	got, err := command.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Reason, got.Reason)
	assert.True(t, c.IssuedAt.Equal(got.IssuedAt))

	_, err = command.Decode([]byte("{"))
	assert.ErrorIs(t, err, command.ErrInvalidCommand)
	_, err = command.Decode([]byte(`{"type":"reboot"}`))
	assert.ErrorIs(t, err, command.ErrInvalidCommand)
	_, err = command.Encode(command.Command{})
	assert.ErrorIs(t, err, command.ErrInvalidCommand)
}

func TestInMemoryChannel(t *testing.T) {
	ctx := context.Background()
	ch := command.NewInMemoryChannel()

	cmds, err := ch.FetchCommands(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmds)

	require.NoError(t, ch.SendCommand(ctx, command.Abort("a")))
	require.NoError(t, ch.SendCommand(ctx, command.Abort("b")))
	assert.Error(t, ch.SendCommand(ctx, command.Command{Type: "nope"}))

	cmds, err = ch.FetchCommands(ctx)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "a", cmds[0].Reason)
	assert.Equal(t, "b", cmds[1].Reason)

	cmds, err = ch.FetchCommands(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmds, "fetch drains the queue")
}

func TestInMemoryChannel_ConcurrentSenders(t *testing.T) {
	ctx := context.Background()
	ch := command.NewInMemoryChannel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ch.SendCommand(ctx, command.Abort("x"))
		}()
	}
	wg.Wait()

	cmds, err := ch.FetchCommands(ctx)
	require.NoError(t, err)
	assert.Len(t, cmds, 50)
}

func TestChannelKey(t *testing.T) {
	assert.Equal(t, "workflow:run-1:commands", command.ChannelKey("run-1"))
}

// transportFactory builds a Transport for the shared contract tests.
type transportFactory func(t *testing.T) command.Transport

func transports() map[string]transportFactory {
	return map[string]transportFactory{
		"memory": func(*testing.T) command.Transport {
			return command.NewMemoryTransport()
		},
		"redis": func(t *testing.T) command.Transport {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return command.NewRedisTransport(client)
		},
	}
}

func TestDistributedChannel(t *testing.T) {
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			transport := newTransport(t)

			sender := command.NewDistributedChannel(transport, "run-1")
			engine := command.NewDistributedChannel(transport, "run-1")
			other := command.NewDistributedChannel(transport, "run-2")

			require.NoError(t, sender.SendCommand(ctx, command.Abort("first")))
			require.NoError(t, sender.SendCommand(ctx, command.Abort("second")))

			cmds, err := other.FetchCommands(ctx)
			require.NoError(t, err)
			assert.Empty(t, cmds, "channels are scoped by run id")

			cmds, err = engine.FetchCommands(ctx)
			require.NoError(t, err)
			require.Len(t, cmds, 2)
			assert.Equal(t, "first", cmds[0].Reason)
			assert.Equal(t, "second", cmds[1].Reason)

			cmds, err = engine.FetchCommands(ctx)
			require.NoError(t, err)
			assert.Empty(t, cmds)
		})
	}
}

func TestDistributedChannel_SkipsMalformed(t *testing.T) {
	ctx := context.Background()
	transport := command.NewMemoryTransport()
	var logs bytes.Buffer
	ch := command.NewDistributedChannel(transport, "run-1",
		command.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	require.NoError(t, transport.Publish(ctx, ch.Key(), []byte("garbage")))
	require.NoError(t, ch.SendCommand(ctx, command.Abort("ok")))

	cmds, err := ch.FetchCommands(ctx)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "ok", cmds[0].Reason)
	assert.Contains(t, logs.String(), "dropping malformed command")
}

type failingTransport struct{}

func (failingTransport) Publish(context.Context, string, []byte) error {
	return errors.New("broker down")
}

func (failingTransport) Poll(context.Context, string) ([][]byte, error) {
	return nil, errors.New("broker down")
}

func TestDistributedChannel_TransportErrors(t *testing.T) {
	ctx := context.Background()
	ch := command.NewDistributedChannel(failingTransport{}, "run-1")

	assert.ErrorContains(t, ch.SendCommand(ctx, command.Abort("x")), "broker down")
	_, err := ch.FetchCommands(ctx)
	assert.ErrorContains(t, err, "broker down")
}

func TestRedisTransport_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	transport := command.NewRedisTransport(client, command.WithTTL(time.Minute))
	require.NoError(t, transport.Publish(ctx, "k", []byte("v")))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	msgs, err := transport.Poll(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRedisTransport_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	transport := command.NewRedisTransport(client)
	assert.Error(t, transport.Publish(context.Background(), "k", []byte("v")))
}
