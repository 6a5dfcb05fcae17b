package rulestore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hma-go/actioner/actioner/policy"
	"github.com/hma-go/actioner/actioner/util"

	"github.com/cenkalti/backoff/v5"
)

// Retries transient load failures from the inner store. Missing or unparseable configuration is not retried.
type RetryingStore struct {
	Inner  Store
	Policy util.RetryPolicy
	Logger *slog.Logger
}

var _ Store = (*RetryingStore)(nil)

func NewRetryingStore(inner Store, p util.RetryPolicy, logger *slog.Logger) *RetryingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingStore{
		Inner:  inner,
		Policy: p,
		Logger: logger,
	}
}

func (s *RetryingStore) Load(ctx context.Context) (*policy.Snapshot, error) {
	var snap *policy.Snapshot
	err := util.Retry(ctx, s.Policy, func(ctx context.Context) error {
		v, err := s.Inner.Load(ctx)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, policy.ErrInvalidPolicy) {
				return backoff.Permanent(err)
			}
			return err
		}
		snap = v
		return nil
	}, func(err error, wait time.Duration) {
		s.Logger.Warn("policy load failed, retrying", "err", err, "wait", wait)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
