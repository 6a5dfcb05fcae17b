package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/hma-go/actioner/actioner/event"
	"github.com/hma-go/actioner/actioner/policy"
	"github.com/hma-go/actioner/actioner/rulestore"
)

var tracer = otel.Tracer("actioner")

// Optional sink for processed matches (eg, the match query store).
type MatchRecorder interface {
	RecordMatch(ctx context.Context, match *event.MatchMessage, out *RecordOutcome) error
}

// runtime for evaluating match records against policy, and dispatching the resulting action and reaction messages.
//
// Logger, Policy, and Dispatcher must be set. The reaction gate and resolver default to ones built from the policy snapshot's reaction settings.
type Engine struct {
	Logger     *slog.Logger
	Policy     rulestore.Store
	Dispatcher *Dispatcher
	// overrides for the reaction gate and resolver (optional)
	Gate      func(snap *policy.Snapshot) ReactionGate
	Reactions func(snap *policy.Snapshot) ReactionResolver
	// max number of records processed concurrently within a batch; zero means GOMAXPROCS
	Parallelism int
	Recorder    MatchRecorder
}

func (eng *Engine) parallelism() int {
	if eng.Parallelism > 0 {
		return eng.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// Processes every envelope in the batch. Records are independent: a failure (or panic) in one record never affects the others. The returned summary lists outcomes in input order.
func (eng *Engine) ProcessBatch(ctx context.Context, envs []event.Envelope) BatchSummary {
	start := time.Now()
	batchID := uuid.New()
	ctx, span := tracer.Start(ctx, "ProcessBatch")
	defer span.End()
	span.SetAttributes(attribute.String("batch_id", batchID.String()), attribute.Int("size", len(envs)))

	outcomes := make([]RecordOutcome, len(envs))
	var eg errgroup.Group
	eg.SetLimit(eng.parallelism())
	for i, env := range envs {
		eg.Go(func() error {
			outcomes[i] = eng.ProcessEnvelope(ctx, env)
			return nil
		})
	}
	// per-record errors are carried in outcomes, never returned
	_ = eg.Wait()

	summary := summarize(batchID, outcomes)
	summary.Duration = time.Since(start)
	batchProcessCount.WithLabelValues(string(summary.Status)).Inc()
	span.SetAttributes(attribute.Int("failed", summary.Failed))
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d records failed", summary.Failed, summary.Total))
	}
	eng.Logger.Info("batch processed", "batch", batchID, "status", summary.Status, "total", summary.Total, "failed", summary.Failed, "duration", summary.Duration)
	return summary
}

// Parses and fully processes a single inbound record.
func (eng *Engine) ProcessEnvelope(ctx context.Context, env event.Envelope) (out RecordOutcome) {
	start := time.Now()
	out = RecordOutcome{EnvelopeID: env.ID, State: StateReceived}
	logger := eng.Logger.With("envelope", env.ID)

	ctx, span := tracer.Start(ctx, "ProcessEnvelope")
	defer span.End()

	defer func() {
		// similar to an HTTP server, recover any panic so one record can't take down the batch
		if r := recover(); r != nil {
			logger.Error("record processing exception", "err", r)
			out.fail(fmt.Errorf("record processing panic: %v", r))
		}
		out.Duration = time.Since(start)
		recordProcessDuration.Observe(out.Duration.Seconds())
		recordProcessCount.WithLabelValues(string(out.State)).Inc()
		if out.State == StateFailed {
			recordFailureCount.WithLabelValues(string(out.Failure)).Inc()
			span.SetStatus(codes.Error, out.Error)
		}
	}()

	match, err := event.ParseEnvelope(env)
	if err != nil {
		logger.Warn("dropping malformed match record", "err", err)
		out.fail(fmt.Errorf("%w: %w", ErrMalformedInput, err))
		return out
	}
	out.ContentID = match.ContentID
	span.SetAttributes(attribute.String("content_id", match.ContentID))

	snap, err := eng.Policy.Load(ctx)
	if err != nil {
		logger.Error("failed to load policy configuration", "err", err)
		out.fail(fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err))
		return out
	}

	eng.processMatch(ctx, logger.With("content", match.ContentID), snap, match, &out)
	if eng.Recorder != nil {
		if err := eng.Recorder.RecordMatch(ctx, match, &out); err != nil {
			logger.Warn("failed to record match", "err", err)
		}
	}
	return out
}

// Runs the evaluation and dispatch pipeline for an already-parsed match, against the given policy snapshot.
func (eng *Engine) ProcessMatch(ctx context.Context, snap *policy.Snapshot, match *event.MatchMessage) RecordOutcome {
	start := time.Now()
	out := RecordOutcome{ContentID: match.ContentID, State: StateReceived}
	eng.processMatch(ctx, eng.Logger.With("content", match.ContentID), snap, match, &out)
	out.Duration = time.Since(start)
	return out
}

func (eng *Engine) processMatch(ctx context.Context, logger *slog.Logger, snap *policy.Snapshot, match *event.MatchMessage, out *RecordOutcome) {
	out.MatchedActions = EvaluateRules(match, snap.Rules)
	out.advance(StateRulesEvaluated)

	resolved, anomalies := resolveSupersession(out.MatchedActions, snap.Actions)
	for _, a := range anomalies {
		configAnomalyCount.Inc()
		logger.Warn("resolved mutual action supersession", "err", a)
		out.Anomalies = append(out.Anomalies, a.Error())
	}
	if n := len(out.MatchedActions) - len(resolved); n > 0 {
		actionsSupersededCount.Add(float64(n))
	}
	out.ResolvedActions = resolved
	out.advance(StateSuperseded)

	var failed error
	results := eng.Dispatcher.DispatchActions(ctx, match, resolved)
	out.Dispatched = append(out.Dispatched, results...)
	failed = firstFailure(results)
	out.advance(StateActionsDispatched)

	gate := defaultGate(snap)
	if eng.Gate != nil {
		gate = eng.Gate(snap)
	}
	enabled := gate.IsReactionEnabled(match)
	out.advance(StateReactionGateChecked)

	if !enabled {
		out.ReactionsGated = true
		reactionsSkippedCount.Inc()
		out.advance(StateReactionsSkipped)
	} else {
		resolver := defaultReactionResolver(snap)
		if eng.Reactions != nil {
			resolver = eng.Reactions(snap)
		}
		out.Reactions = resolver.ResolveReactions(match, resolved)
		results := eng.Dispatcher.DispatchReactions(ctx, match, out.Reactions)
		out.Dispatched = append(out.Dispatched, results...)
		if failed == nil {
			failed = firstFailure(results)
		}
		out.advance(StateReactionsDispatched)
	}

	if failed != nil {
		out.fail(failed)
		return
	}
	out.advance(StateDone)
	logger.Debug("match processed", "actions", len(resolved), "reactions", len(out.Reactions), "gated", out.ReactionsGated)
}

func firstFailure(results []DispatchResult) error {
	for i := range results {
		if results[i].Err != nil {
			return results[i].Err
		}
	}
	return nil
}
