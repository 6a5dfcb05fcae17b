package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hma-go/actioner/actioner/event"
	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/queue"
	"github.com/hma-go/actioner/actioner/util"
)

const (
	QueueActions   = "actions"
	QueueReactions = "reactions"
)

// Outcome of publishing a single outbound message.
type DispatchResult struct {
	Queue string       `json:"queue"`
	Label labels.Label `json:"label"`
	Err   error        `json:"-"`
	// string form of Err, for reporting
	Error string `json:"error,omitempty"`
}

func (r *DispatchResult) Ok() bool {
	return r.Err == nil
}

// Publishes one outbound message per label, with bounded retries. A failure on one label does not prevent the remaining labels from being sent.
type Dispatcher struct {
	Logger    *slog.Logger
	Actions   queue.Publisher
	Reactions queue.Publisher
	Retry     util.RetryPolicy
}

func NewDispatcher(logger *slog.Logger, actions, reactions queue.Publisher) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Logger:    logger,
		Actions:   actions,
		Reactions: reactions,
		Retry:     util.DefaultRetryPolicy(),
	}
}

func (d *Dispatcher) DispatchActions(ctx context.Context, match *event.MatchMessage, actionLabels []labels.Label) []DispatchResult {
	out := make([]DispatchResult, 0, len(actionLabels))
	for _, l := range actionLabels {
		msg := event.NewActionMessage(match, l)
		out = append(out, d.dispatch(ctx, QueueActions, d.Actions, l, msg))
	}
	return out
}

func (d *Dispatcher) DispatchReactions(ctx context.Context, match *event.MatchMessage, reactionLabels []labels.Label) []DispatchResult {
	out := make([]DispatchResult, 0, len(reactionLabels))
	for _, l := range reactionLabels {
		msg := event.NewReactionMessage(match, l)
		out = append(out, d.dispatch(ctx, QueueReactions, d.Reactions, l, msg))
	}
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, queueName string, pub queue.Publisher, l labels.Label, msg any) DispatchResult {
	res := DispatchResult{Queue: queueName, Label: l}
	err := d.publish(ctx, queueName, pub, msg)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		publishFailureCount.WithLabelValues(queueName).Inc()
		d.Logger.Error("failed to publish message", "queue", queueName, "label", l.String(), "err", err)
		return res
	}
	messagesPublishedCount.WithLabelValues(queueName).Inc()
	return res
}

func (d *Dispatcher) publish(ctx context.Context, queueName string, pub queue.Publisher, msg any) error {
	if pub == nil {
		return fmt.Errorf("%w: no %s publisher configured", ErrPublishFailure, queueName)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encoding %s message: %w", ErrPublishFailure, queueName, err)
	}
	err = util.Retry(ctx, d.Retry, func(ctx context.Context) error {
		return pub.Publish(ctx, body)
	}, func(err error, wait time.Duration) {
		d.Logger.Warn("retrying publish", "queue", queueName, "err", err, "wait", wait)
	})
	if err != nil {
		return fmt.Errorf("%w (%s): %w", ErrPublishFailure, queueName, err)
	}
	return nil
}
