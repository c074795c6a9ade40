package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return false }

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New("boom"), "Error"},
		{"status", &StatusError{Code: 502}, "HTTPResponseCodeError"},
		{"input", &InputError{Field: "url"}, "ValidationError"},
		{"timeout", &TimeoutError{Op: "fetch"}, "TimeoutError"},
		{"wrapped", fmt.Errorf("node x: %w", &TimeoutError{Op: "fetch"}), "TimeoutError"},
		{"with type", WithType(errors.New("quota"), "QuotaExceeded"), "QuotaExceeded"},
		{"outermost label wins", WithType(&InputError{}, "Custom"), "Custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorType(tt.err))
		})
	}
}

func TestWithType(t *testing.T) {
	assert.NoError(t, WithType(nil, "X"))

	cause := &StatusError{Code: 404, URL: "https://api.test/v1", Body: "not found"}
	err := WithType(cause, "NotFound")
	assert.Equal(t, "status 404 from https://api.test/v1: not found", err.Error())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Same(t, cause, se)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "status 500: oops", (&StatusError{Code: 500, Body: "oops"}).Error())
	assert.Equal(t, "invalid input: empty", (&InputError{Reason: "empty"}).Error())
	assert.Equal(t, "invalid input query: empty", (&InputError{Field: "query", Reason: "empty"}).Error())
	assert.Equal(t, "fetch timed out", (&TimeoutError{Op: "fetch"}).Error())
	assert.Equal(t, "fetch timed out after 30s", (&TimeoutError{Op: "fetch", After: 30 * time.Second}).Error())
}

func TestTemporary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"status 429", &StatusError{Code: 429}, true},
		{"status 503", &StatusError{Code: 503}, true},
		{"status 404", &StatusError{Code: 404}, false},
		{"timeout", &TimeoutError{Op: "x"}, true},
		{"wrapped status", fmt.Errorf("call: %w", &StatusError{Code: 502}), true},
		{"input", &InputError{}, false},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Temporary(tt.err))
		})
	}
}

func TestTemporary_NetTimeout(t *testing.T) {
	assert.True(t, Temporary(fmt.Errorf("dial: %w", netTimeout{})))
}

func TestIsCanceled(t *testing.T) {
	assert.True(t, IsCanceled(context.Canceled))
	assert.True(t, IsCanceled(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.False(t, IsCanceled(errors.New("boom")))
	assert.False(t, IsCanceled(nil))
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2))
	assert.Equal(t, 800*time.Millisecond, b.Delay(4))
	assert.Equal(t, time.Second, b.Delay(5))
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))

	fixed := Backoff{Initial: time.Second}
	assert.Equal(t, time.Second, fixed.Delay(7))

	jittered := Backoff{Initial: time.Second, Jitter: 0.1}
	for range 50 {
		d := jittered.Delay(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	out := Do(context.Background(), Fixed(3, time.Millisecond), func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, 1, out.Attempts)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	var retries []int
	p := Fixed(5, time.Millisecond)
	p.OnRetry = func(n int, err error, wait time.Duration) {
		retries = append(retries, n)
		assert.EqualError(t, err, "flaky")
		assert.Equal(t, time.Millisecond, wait)
	}

	calls := 0
	out := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return calls, errors.New("flaky")
		}
		return calls, nil
	})
	require.NoError(t, out.Err)
	assert.Equal(t, 3, out.Value)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	out := Do(context.Background(), Fixed(3, 0), func(context.Context) (string, error) {
		return "partial", boom
	})
	assert.ErrorIs(t, out.Err, boom)
	assert.Equal(t, "partial", out.Value)
	assert.Equal(t, 3, out.Attempts)
}

func TestDo_DefaultPolicyStopsOnPermanent(t *testing.T) {
	calls := 0
	out := Do(context.Background(), Policy{Attempts: 5}, func(context.Context) (int, error) {
		calls++
		return 0, &InputError{Reason: "bad"}
	})
	require.Error(t, out.Err)
	assert.Equal(t, 1, calls)

	calls = 0
	out = Do(context.Background(), Policy{Attempts: 3}, func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{Code: 503}
	})
	require.Error(t, out.Err)
	assert.Equal(t, 3, calls)
}

func TestDo_Once(t *testing.T) {
	calls := 0
	out := Do(context.Background(), Once, func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{Code: 503}
	})
	require.Error(t, out.Err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, out.Attempts)
}

func TestDo_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Fixed(5, time.Hour)
	p.OnRetry = func(int, error, time.Duration) { cancel() }

	start := time.Now()
	out := Do(ctx, p, func(context.Context) (string, error) {
		return "v", errors.New("fail")
	})
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, "v", out.Value)
	assert.Equal(t, 1, out.Attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	out := Do(ctx, Fixed(3, 0), func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.False(t, called)
	assert.Zero(t, out.Attempts)
}

func TestFixed_DoesNotRetryCancellation(t *testing.T) {
	p := Fixed(3, time.Second)
	assert.True(t, p.ShouldRetry(errors.New("boom")))
	assert.False(t, p.ShouldRetry(context.Canceled))
	assert.False(t, p.ShouldRetry(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
}
