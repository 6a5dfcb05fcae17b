// Declarative policy configuration for the action evaluator: action rules, action precedence, and reaction settings.
//
// A `Snapshot` is the unit of configuration handed to the engine. It is built once (from a file, redis, etc) and never mutated afterwards, so it is safe to share between concurrently processed records.
package policy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hma-go/actioner/actioner/labels"
)

// Predicate over match labels which, when satisfied, yields an action label.
type ActionRule struct {
	Name              string         `json:"name,omitempty"`
	MustHaveLabels    []labels.Label `json:"must_have_labels"`
	MustNotHaveLabels []labels.Label `json:"must_not_have_labels"`
	ActionLabel       labels.Label   `json:"action_label"`
}

// Precedence metadata for an action label.
//
// Lower Priority values are more important. SupersededByActionLabels lists the action labels which *this* action overrides when both are present for the same match.
type Action struct {
	ActionLabel              labels.Label   `json:"action_label"`
	Priority                 int            `json:"priority"`
	SupersededByActionLabels []labels.Label `json:"superseded_by_action_labels"`
}

// Yields a reaction label when the match carries all of MustHaveLabels, and (if ActionLabels is non-empty) at least one of ActionLabels was resolved for the match.
type ReactionRule struct {
	MustHaveLabels []labels.Label `json:"must_have_labels"`
	ActionLabels   []labels.Label `json:"action_labels"`
	ReactionLabel  labels.Label   `json:"reaction_label"`
}

type ReactionSettings struct {
	// global switch for reacting to the signal exchange
	Enabled bool `json:"enabled"`
	// per-collaboration overrides of the global switch, keyed by collaboration identifier
	Collaborations map[string]bool `json:"collaborations,omitempty"`
	Rules          []ReactionRule  `json:"rules,omitempty"`
	// emitted when no reaction rules are configured. Left out of a document (nil), it defaults to SAW_THIS_TOO; an explicit empty list disables default reactions.
	DefaultReactions []labels.Label `json:"default_reactions"`
}

type Snapshot struct {
	Rules     []ActionRule
	Actions   map[labels.Label]Action
	Reactions ReactionSettings
}

// JSON document shape for a full policy configuration.
type Document struct {
	Rules     []ActionRule      `json:"rules"`
	Actions   []Action          `json:"actions"`
	Reactions *ReactionSettings `json:"reactions,omitempty"`
}

var ErrInvalidPolicy = errors.New("invalid policy configuration")

var defaultReaction = labels.Reaction("SAW_THIS_TOO")

func DefaultReactionSettings() ReactionSettings {
	return ReactionSettings{
		Enabled:          true,
		DefaultReactions: []labels.Label{defaultReaction},
	}
}

// Builds an immutable snapshot from a parsed document. Checks label kinds, and rejects duplicate action definitions.
func NewSnapshot(doc Document) (*Snapshot, error) {
	snap := &Snapshot{
		Rules:   make([]ActionRule, 0, len(doc.Rules)),
		Actions: make(map[labels.Label]Action, len(doc.Actions)),
	}
	for i, r := range doc.Rules {
		if !r.ActionLabel.IsAction() {
			return nil, fmt.Errorf("%w: rule %d (%s): not an action label: %s", ErrInvalidPolicy, i, r.Name, r.ActionLabel)
		}
		snap.Rules = append(snap.Rules, cloneRule(r))
	}
	for _, a := range doc.Actions {
		if !a.ActionLabel.IsAction() {
			return nil, fmt.Errorf("%w: not an action label: %s", ErrInvalidPolicy, a.ActionLabel)
		}
		if _, ok := snap.Actions[a.ActionLabel]; ok {
			return nil, fmt.Errorf("%w: duplicate action definition: %s", ErrInvalidPolicy, a.ActionLabel)
		}
		for _, sup := range a.SupersededByActionLabels {
			if !sup.IsAction() {
				return nil, fmt.Errorf("%w: action %s supersedes a non-action label: %s", ErrInvalidPolicy, a.ActionLabel, sup)
			}
		}
		a.SupersededByActionLabels = append([]labels.Label{}, a.SupersededByActionLabels...)
		snap.Actions[a.ActionLabel] = a
	}
	if doc.Reactions != nil {
		snap.Reactions = cloneReactions(*doc.Reactions)
		if doc.Reactions.DefaultReactions == nil {
			snap.Reactions.DefaultReactions = []labels.Label{defaultReaction}
		}
	} else {
		snap.Reactions = DefaultReactionSettings()
	}
	for _, rr := range snap.Reactions.Rules {
		if !rr.ReactionLabel.IsReaction() {
			return nil, fmt.Errorf("%w: not a reaction label: %s", ErrInvalidPolicy, rr.ReactionLabel)
		}
		for _, al := range rr.ActionLabels {
			if !al.IsAction() {
				return nil, fmt.Errorf("%w: reaction rule %s refers to a non-action label: %s", ErrInvalidPolicy, rr.ReactionLabel, al)
			}
		}
	}
	return snap, nil
}

func ParseSnapshotJSON(raw []byte) (*Snapshot, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing policy document: %w", ErrInvalidPolicy, err)
	}
	return NewSnapshot(doc)
}

func cloneRule(r ActionRule) ActionRule {
	r.MustHaveLabels = append([]labels.Label{}, r.MustHaveLabels...)
	r.MustNotHaveLabels = append([]labels.Label{}, r.MustNotHaveLabels...)
	return r
}

func cloneReactions(rs ReactionSettings) ReactionSettings {
	out := ReactionSettings{
		Enabled:          rs.Enabled,
		DefaultReactions: append([]labels.Label{}, rs.DefaultReactions...),
	}
	if rs.Collaborations != nil {
		out.Collaborations = make(map[string]bool, len(rs.Collaborations))
		for k, v := range rs.Collaborations {
			out.Collaborations[k] = v
		}
	}
	for _, rr := range rs.Rules {
		out.Rules = append(out.Rules, ReactionRule{
			MustHaveLabels: append([]labels.Label{}, rr.MustHaveLabels...),
			ActionLabels:   append([]labels.Label{}, rr.ActionLabels...),
			ReactionLabel:  rr.ReactionLabel,
		})
	}
	return out
}
