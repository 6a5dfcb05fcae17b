package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Bounded retry policy for blocking network operations (config loads, queue publishes).
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// deadline applied to each individual attempt; zero means no per-attempt deadline
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        4,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		AttemptTimeout:  5 * time.Second,
	}
}

// Runs `fn` until it succeeds, returns a permanent error (see `backoff.Permanent`), the attempt budget is used up, or `ctx` is done. Returns the last error seen.
//
// `notify` is called before each backoff sleep, and may be nil.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error, notify func(err error, wait time.Duration)) error {
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(tries),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		actx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}
		return struct{}{}, fn(actx)
	}, opts...)
	return err
}
