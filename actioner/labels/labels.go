// Namespaced tags attached to match events, used as rule predicate terms, and used to identify actions and reactions.
//
// A single comparable `Label` type covers all three roles; the `Kind` field discriminates between them. Labels can be used directly as map keys.
package labels

import (
	"encoding/json"
	"fmt"
)

type Kind int

const (
	KindGeneric Kind = iota
	KindAction
	KindReaction
)

const (
	// namespace used for all action labels
	ActionNamespace = "Action"
	// namespace used for reaction labels destined for the signal exchange
	ReactionNamespace = "ThreatExchangeReaction"
	// namespace of labels which identify a collaboration (dataset owner) in match context
	CollaborationNamespace = "Collaboration"
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindReaction:
		return "reaction"
	default:
		return "generic"
	}
}

type Label struct {
	Kind      Kind
	Namespace string
	Value     string
}

// Generic label, eg a collaboration or dataset tag on a match.
func New(namespace, value string) Label {
	return Label{Kind: kindForNamespace(namespace), Namespace: namespace, Value: value}
}

func Action(value string) Label {
	return Label{Kind: KindAction, Namespace: ActionNamespace, Value: value}
}

func Reaction(value string) Label {
	return Label{Kind: KindReaction, Namespace: ReactionNamespace, Value: value}
}

func Collaboration(id string) Label {
	return New(CollaborationNamespace, id)
}

func kindForNamespace(ns string) Kind {
	switch ns {
	case ActionNamespace:
		return KindAction
	case ReactionNamespace:
		return KindReaction
	default:
		return KindGeneric
	}
}

func (l Label) IsAction() bool {
	return l.Kind == KindAction
}

func (l Label) IsReaction() bool {
	return l.Kind == KindReaction
}

func (l Label) String() string {
	return fmt.Sprintf("%s:%s", l.Namespace, l.Value)
}

type labelJSON struct {
	Namespace string `json:"namespace"`
	Value     string `json:"value"`
}

func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelJSON{Namespace: l.Namespace, Value: l.Value})
}

// The kind is re-derived from the namespace, so labels round-trip through JSON without an explicit discriminator.
func (l *Label) UnmarshalJSON(b []byte) error {
	var raw labelJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Namespace == "" {
		return fmt.Errorf("label missing namespace (value=%q)", raw.Value)
	}
	*l = New(raw.Namespace, raw.Value)
	return nil
}
