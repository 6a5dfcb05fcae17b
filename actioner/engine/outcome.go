package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/hma-go/actioner/actioner/labels"
)

// Processing state of a single match record. Records move forward through these states in order; ReactionsSkipped and ReactionsDispatched are alternatives, and Failed can be entered from any state.
type State string

const (
	StateReceived            State = "received"
	StateRulesEvaluated      State = "rules-evaluated"
	StateSuperseded          State = "superseded"
	StateActionsDispatched   State = "actions-dispatched"
	StateReactionGateChecked State = "reaction-gate-checked"
	StateReactionsDispatched State = "reactions-dispatched"
	StateReactionsSkipped    State = "reactions-skipped"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// Result of processing one inbound record.
type RecordOutcome struct {
	EnvelopeID string `json:"envelope_id"`
	ContentID  string `json:"content_id,omitempty"`
	State      State  `json:"state"`
	// last state reached before failing
	FailedAt State       `json:"failed_at,omitempty"`
	Failure  FailureKind `json:"failure,omitempty"`
	Err      error       `json:"-"`
	Error    string      `json:"error,omitempty"`

	// action labels from rule evaluation, before and after supersession
	MatchedActions  []labels.Label `json:"matched_actions,omitempty"`
	ResolvedActions []labels.Label `json:"resolved_actions,omitempty"`
	Reactions       []labels.Label `json:"reactions,omitempty"`
	ReactionsGated  bool           `json:"reactions_gated,omitempty"`

	Dispatched []DispatchResult `json:"dispatched,omitempty"`
	Anomalies  []string         `json:"anomalies,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

func (o *RecordOutcome) Succeeded() bool {
	return o.State == StateDone
}

func (o *RecordOutcome) advance(s State) {
	o.State = s
}

func (o *RecordOutcome) fail(err error) {
	o.FailedAt = o.State
	o.State = StateFailed
	o.Failure = classifyFailure(err)
	o.Err = err
	o.Error = err.Error()
}

// Number of outbound messages which could not be published.
func (o *RecordOutcome) PublishFailures() int {
	n := 0
	for i := range o.Dispatched {
		if !o.Dispatched[i].Ok() {
			n++
		}
	}
	return n
}

type BatchStatus string

const (
	BatchEmpty     BatchStatus = "empty"
	BatchSucceeded BatchStatus = "succeeded"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

// Aggregate result of a batch. Records are in the same order as the input envelopes.
type BatchSummary struct {
	BatchID   uuid.UUID       `json:"batch_id"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Status    BatchStatus     `json:"status"`
	Records   []RecordOutcome `json:"records"`
	Duration  time.Duration   `json:"duration"`
}

func summarize(id uuid.UUID, records []RecordOutcome) BatchSummary {
	s := BatchSummary{
		BatchID: id,
		Total:   len(records),
		Records: records,
	}
	for i := range records {
		if records[i].Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	switch {
	case s.Total == 0:
		s.Status = BatchEmpty
	case s.Failed == 0:
		s.Status = BatchSucceeded
	case s.Succeeded == 0:
		s.Status = BatchFailed
	default:
		s.Status = BatchPartial
	}
	return s
}

// Envelope IDs of records which did not complete, eg for redelivery.
func (s *BatchSummary) FailedIDs() []string {
	var out []string
	for i := range s.Records {
		if !s.Records[i].Succeeded() {
			out = append(out, s.Records[i].EnvelopeID)
		}
	}
	return out
}
