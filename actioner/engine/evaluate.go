package engine

import (
	"github.com/hma-go/actioner/actioner/event"
	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"
)

// A rule applies when the match carries every one of the rule's MustHaveLabels, and none of its MustNotHaveLabels.
func RuleApplies(rule *policy.ActionRule, matchLabels labels.Set) bool {
	return matchLabels.ContainsAll(rule.MustHaveLabels) && matchLabels.ContainsNone(rule.MustNotHaveLabels)
}

// Returns the action label of every applicable rule, in rule order, without duplicates.
func EvaluateRules(match *event.MatchMessage, rules []policy.ActionRule) []labels.Label {
	set := match.LabelSet()
	out := []labels.Label{}
	seen := make(map[labels.Label]bool)
	for i := range rules {
		r := &rules[i]
		if seen[r.ActionLabel] || !RuleApplies(r, set) {
			continue
		}
		seen[r.ActionLabel] = true
		out = append(out, r.ActionLabel)
	}
	return out
}
