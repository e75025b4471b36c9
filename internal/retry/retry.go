// Package retry runs an operation with bounded attempts and linear backoff.
package retry

import (
	"context"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/logger"
)

// Defaults used when no options are given.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy controls how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       SleepFunc
}

// Option customises a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total number of attempts. Values below 1 mean one.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) { p.MaxAttempts = n }
}

// WithBaseDelay sets the unit of the linear backoff: attempt n waits n*d.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) { p.BaseDelay = d }
}

// WithSleep replaces the wait between attempts. Tests use it to count delays.
func WithSleep(fn SleepFunc) Option {
	return func(p *Policy) { p.Sleep = fn }
}

// NewPolicy builds a policy from the defaults and opts.
func NewPolicy(opts ...Option) Policy {
	p := Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// Options returns p as a list of options, so a configured policy can be passed
// where Do expects options.
func (p Policy) Options() []Option {
	return []Option{WithMaxAttempts(p.MaxAttempts), WithBaseDelay(p.BaseDelay), WithSleep(p.Sleep)}
}

// Do calls op until it succeeds or the attempts are used up. After failed
// attempt n it waits n*BaseDelay. The error of the last attempt is returned
// unchanged. Configuration errors are returned at once without waiting.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	p := NewPolicy(opts...)
	log := logger.FromContext(ctx)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if domain.IsConfiguration(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := time.Duration(attempt) * p.BaseDelay
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", delay).
			Msg("Attempt failed, retrying")

		if err := p.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
