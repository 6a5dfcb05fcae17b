package engine

import (
	"github.com/hma-go/actioner/actioner/event"
	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"
)

// Decides whether reactions should be sent back to the signal exchange for a given match.
type ReactionGate interface {
	IsReactionEnabled(match *event.MatchMessage) bool
}

// Determines which reaction labels to send for a match, given the (post-supersession) action labels resolved for it.
type ReactionResolver interface {
	ResolveReactions(match *event.MatchMessage, actionLabels []labels.Label) []labels.Label
}

// Gate backed by policy reaction settings.
//
// If any collaboration in the match context has an explicit entry in the settings, those entries decide (reactions are enabled if any of them is enabled). Otherwise the global switch applies.
type SettingsGate struct {
	Settings policy.ReactionSettings
}

var _ ReactionGate = (*SettingsGate)(nil)

func (g *SettingsGate) IsReactionEnabled(match *event.MatchMessage) bool {
	explicit := false
	enabled := false
	for _, c := range match.Collaborations() {
		v, ok := g.Settings.Collaborations[c]
		if !ok {
			continue
		}
		explicit = true
		enabled = enabled || v
	}
	if explicit {
		return enabled
	}
	return g.Settings.Enabled
}

// Resolver backed by policy reaction rules; with no rules configured, the default reactions are sent for every match.
type PolicyReactionResolver struct {
	Settings policy.ReactionSettings
}

var _ ReactionResolver = (*PolicyReactionResolver)(nil)

func (r *PolicyReactionResolver) ResolveReactions(match *event.MatchMessage, actionLabels []labels.Label) []labels.Label {
	if len(r.Settings.Rules) == 0 {
		return labels.Dedupe(r.Settings.DefaultReactions)
	}
	matchLabels := match.LabelSet()
	resolved := labels.NewSet(actionLabels...)
	out := []labels.Label{}
	for _, rule := range r.Settings.Rules {
		if !matchLabels.ContainsAll(rule.MustHaveLabels) {
			continue
		}
		if len(rule.ActionLabels) > 0 && resolved.ContainsNone(rule.ActionLabels) {
			continue
		}
		out = append(out, rule.ReactionLabel)
	}
	return labels.Dedupe(out)
}

func defaultGate(snap *policy.Snapshot) ReactionGate {
	return &SettingsGate{Settings: snap.Reactions}
}

func defaultReactionResolver(snap *policy.Snapshot) ReactionResolver {
	return &PolicyReactionResolver{Settings: snap.Reactions}
}
