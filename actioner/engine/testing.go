package engine

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hma-go/actioner/actioner/event"
	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"
	"github.com/hma-go/actioner/actioner/queue"
	"github.com/hma-go/actioner/actioner/rulestore"
	"github.com/hma-go/actioner/actioner/util"
)

// Policy used by EngineTestFixture: matches from collaboration 12345 are enqueued for review, with reactions enabled globally.
func TestPolicyFixture() *policy.Snapshot {
	snap, err := policy.NewSnapshot(policy.Document{
		Rules: []policy.ActionRule{
			{
				Name:           "review-collab-12345",
				MustHaveLabels: []labels.Label{labels.Collaboration("12345")},
				ActionLabel:    labels.Action("EnqueueForReview"),
			},
		},
		Actions: []policy.Action{
			{ActionLabel: labels.Action("EnqueueForReview"), Priority: 1},
		},
	})
	if err != nil {
		panic(err)
	}
	return snap
}

// Engine wired to in-memory publishers and a static policy, with fast retries. Use the MemPublisher accessors to inspect output.
func EngineTestFixture() Engine {
	return EngineWithPolicy(TestPolicyFixture())
}

func EngineWithPolicy(snap *policy.Snapshot) Engine {
	logger := slog.Default()
	disp := NewDispatcher(logger, queue.NewMemPublisher("actions"), queue.NewMemPublisher("reactions"))
	disp.Retry = util.RetryPolicy{
		MaxTries:        3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		AttemptTimeout:  time.Second,
	}
	return Engine{
		Logger:      logger,
		Policy:      rulestore.NewStaticStore(snap),
		Dispatcher:  disp,
		Parallelism: 4,
	}
}

// Bare (unwrapped) JSON envelope for a match message.
func MustEnvelope(id string, m event.MatchMessage) event.Envelope {
	body, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return event.Envelope{ID: id, Body: body}
}
