package main

import (
	"context"
	"errors"
	"time"

	"github.com/hma-go/actioner/actioner/engine"
	"github.com/hma-go/actioner/actioner/event"
)

// Subset of queue.RedisConsumer used by the service loop.
type inboundConsumer interface {
	Read(ctx context.Context) ([]event.Envelope, error)
	ReadPending(ctx context.Context) ([]event.Envelope, error)
	Reclaim(ctx context.Context, minIdle time.Duration) ([]event.Envelope, error)
	Ack(ctx context.Context, ids ...string) error
	Close() error
}

// Reads batches from the inbound stream and processes them until ctx is done.
//
// Records left unacknowledged by a previous run of this consumer are processed first. After that, every reclaim interval, records which have stayed unacknowledged for the reclaim idle period (failed here, or stranded on another consumer) are claimed and processed again.
func (s *Server) RunConsumer(ctx context.Context) error {
	pending, err := s.consumer.ReadPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		s.logger.Info("re-processing unacknowledged inbound records", "count", len(pending))
		s.handleBatch(ctx, pending)
	}

	nextReclaim := time.Now().Add(s.reclaimInterval)
	for {
		if s.reclaimInterval > 0 && !time.Now().Before(nextReclaim) {
			nextReclaim = time.Now().Add(s.reclaimInterval)
			s.reclaim(ctx)
		}

		envs, err := s.consumer.Read(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.Error("failed to read inbound batch", "err", err)
			inboundReadErrors.Inc()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if len(envs) == 0 {
			continue
		}
		s.handleBatch(ctx, envs)
	}
}

func (s *Server) reclaim(ctx context.Context) {
	envs, err := s.consumer.Reclaim(ctx, s.reclaimMinIdle)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failed to reclaim pending inbound records", "err", err)
			inboundReadErrors.Inc()
		}
		return
	}
	if len(envs) > 0 {
		s.logger.Info("retrying unacknowledged inbound records", "count", len(envs))
		inboundRetriedRecords.Add(float64(len(envs)))
		s.handleBatch(ctx, envs)
	}
}

func (s *Server) handleBatch(ctx context.Context, envs []event.Envelope) {
	inboundBatches.Inc()
	inboundRecords.Add(float64(len(envs)))
	summary := s.engine.ProcessBatch(ctx, envs)

	ids := ackableIDs(&summary)
	if err := s.consumer.Ack(ctx, ids...); err != nil {
		s.logger.Error("failed to acknowledge inbound records", "err", err, "batch", summary.BatchID)
	}
	if n := len(envs) - len(ids); n > 0 {
		s.logger.Warn("leaving failed records for redelivery", "count", n, "batch", summary.BatchID)
	}
}

// Successful records, and records which can never succeed (malformed), are acknowledged. Others stay pending for redelivery.
func ackableIDs(summary *engine.BatchSummary) []string {
	ids := make([]string, 0, len(summary.Records))
	for _, out := range summary.Records {
		if out.Succeeded() || errors.Is(out.Err, engine.ErrMalformedInput) {
			ids = append(ids, out.EnvelopeID)
		}
	}
	return ids
}
