package errors

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the wait before a retry. Delays grow by Factor from
// Initial and are capped at Max when Max is set. Jitter spreads each delay
// by up to ±Jitter of its value.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// Delay returns the wait before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	factor := b.Factor
	if factor <= 0 {
		factor = 1
	}
	d := float64(b.Initial) * math.Pow(factor, float64(max(n, 1)-1))
	if b.Max > 0 {
		d = math.Min(d, float64(b.Max))
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// Policy bounds the attempts of one operation.
type Policy struct {
	// Attempts counts the first try. Values below 1 mean 1.
	Attempts int
	Backoff  Backoff

	// ShouldRetry decides whether a failed attempt is repeated. Nil means
	// Temporary.
	ShouldRetry func(error) bool

	// OnRetry runs after attempt n failed with err and before waiting.
	OnRetry func(n int, err error, wait time.Duration)
}

// Once runs an operation a single time.
var Once = Policy{Attempts: 1}

// Fixed retries every failure except cancellation, waiting interval
// between attempts.
func Fixed(attempts int, interval time.Duration) Policy {
	return Policy{
		Attempts:    attempts,
		Backoff:     Backoff{Initial: interval, Max: interval},
		ShouldRetry: func(err error) bool { return !IsCanceled(err) },
	}
}

// Outcome is the result of Do.
type Outcome[T any] struct {
	// Value is what the last attempt returned, even when it failed.
	Value    T
	Err      error
	Attempts int
}

// Do calls fn until it succeeds, the policy gives up, or ctx is done. Err
// is the last attempt's error, or ctx.Err() when ctx ended first.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) Outcome[T] {
	retry := p.ShouldRetry
	if retry == nil {
		retry = Temporary
	}
	limit := max(p.Attempts, 1)

	var out Outcome[T]
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}
		out.Value, out.Err = fn(ctx)
		out.Attempts = n
		if out.Err == nil || n >= limit || !retry(out.Err) {
			return out
		}

		wait := p.Backoff.Delay(n)
		if p.OnRetry != nil {
			p.OnRetry(n, out.Err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			out.Err = err
			return out
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
