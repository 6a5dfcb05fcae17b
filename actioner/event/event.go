// Message types flowing in and out of the action evaluator: inbound match notifications, and the outbound action and reaction work items.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hma-go/actioner/actioner/labels"
)

var ErrInvalidEnvelope = errors.New("invalid match envelope")

// Describes a single piece of content matching a known signal. Created once upstream and read-only from then on.
type MatchMessage struct {
	ContentID  string         `json:"content_id"`
	SignalHash string         `json:"signal_hash"`
	Labels     []labels.Label `json:"labels"`

	// Optional; upstream matchers which know the signal identity include these, otherwise they are derived (see SignalRef).
	SignalID     string `json:"signal_id,omitempty"`
	SignalSource string `json:"signal_source,omitempty"`
}

// Identity of the matched signal, as carried on outbound messages. Falls back to the signal hash when no explicit id was provided.
func (m *MatchMessage) SignalRef() (id, source string) {
	id = m.SignalID
	if id == "" {
		id = m.SignalHash
	}
	source = m.SignalSource
	if source == "" {
		source = "unknown"
	}
	return id, source
}

func (m *MatchMessage) LabelSet() labels.Set {
	return labels.NewSet(m.Labels...)
}

// Collaboration identifiers implied by the match labels.
func (m *MatchMessage) Collaborations() []string {
	return labels.ValuesInNamespace(m.Labels, labels.CollaborationNamespace)
}

func (m *MatchMessage) Validate() error {
	if m.ContentID == "" {
		return fmt.Errorf("%w: missing content_id", ErrInvalidEnvelope)
	}
	if m.SignalHash == "" {
		return fmt.Errorf("%w: missing signal_hash", ErrInvalidEnvelope)
	}
	return nil
}

type ActionMessage struct {
	ContentID    string       `json:"content_id"`
	SignalID     string       `json:"signal_id"`
	SignalSource string       `json:"signal_source"`
	ActionLabel  labels.Label `json:"action_label"`
}

type ReactionMessage struct {
	ContentID     string       `json:"content_id"`
	SignalID      string       `json:"signal_id"`
	SignalSource  string       `json:"signal_source"`
	ReactionLabel labels.Label `json:"reaction_label"`
}

func NewActionMessage(m *MatchMessage, action labels.Label) ActionMessage {
	id, src := m.SignalRef()
	return ActionMessage{
		ContentID:    m.ContentID,
		SignalID:     id,
		SignalSource: src,
		ActionLabel:  action,
	}
}

func NewReactionMessage(m *MatchMessage, reaction labels.Label) ReactionMessage {
	id, src := m.SignalRef()
	return ReactionMessage{
		ContentID:     m.ContentID,
		SignalID:      id,
		SignalSource:  src,
		ReactionLabel: reaction,
	}
}
