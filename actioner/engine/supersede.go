package engine

import (
	"fmt"
	"log/slog"

	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"
)

// Removes action labels which are overridden by another action label present in the same set.
//
// Label Y is dropped if some other present label X has Y in its SupersededByActionLabels. Removal is evaluated against the full input set, which makes it transitive: with A superseding B and B superseding C, [A, B, C] resolves to [A].
//
// Actions which supersede each other (directly, or around a longer cycle) are a configuration anomaly. Within a cycle an override only counts when it comes from the higher-precedence label (lower Priority; then earlier position), so exactly the top-precedence member of the cycle survives. Anomalies are logged as warnings.
//
// Labels without an Action definition are passed through, and never supersede anything. Input order is preserved.
func ResolveSupersession(logger *slog.Logger, actionLabels []labels.Label, actions map[labels.Label]policy.Action) []labels.Label {
	out, anomalies := resolveSupersession(actionLabels, actions)
	for _, a := range anomalies {
		logger.Warn("resolved mutual action supersession", "err", a)
	}
	return out
}

func resolveSupersession(actionLabels []labels.Label, actions map[labels.Label]policy.Action) ([]labels.Label, []error) {
	// first-seen position of each known (defined) action label
	pos := make(map[labels.Label]int, len(actionLabels))
	for i, l := range actionLabels {
		if _, ok := actions[l]; !ok {
			continue
		}
		if _, ok := pos[l]; !ok {
			pos[l] = i
		}
	}

	outranks := func(x, y labels.Label) bool {
		px, py := actions[x].Priority, actions[y].Priority
		if px != py {
			return px < py
		}
		return pos[x] < pos[y]
	}

	var anomalies []error
	superseded := make(map[labels.Label]bool)
	for _, x := range actionLabels {
		if _, ok := pos[x]; !ok {
			continue
		}
		act := actions[x]
		for _, y := range act.SupersededByActionLabels {
			if _, ok := pos[y]; !ok || y == x {
				continue
			}
			if reaches(y, x, pos, actions) {
				if !outranks(x, y) {
					continue
				}
				anomalies = append(anomalies, fmt.Errorf("%w: %s and %s supersede each other; keeping %s (priority %d)", ErrConfigAnomaly, x.Value, y.Value, x.Value, act.Priority))
			}
			superseded[y] = true
		}
	}

	out := make([]labels.Label, 0, len(actionLabels))
	for _, l := range actionLabels {
		if !superseded[l] {
			out = append(out, l)
		}
	}
	return out, anomalies
}

// whether `to` can be reached from `from` following supersession edges between present, defined labels
func reaches(from, to labels.Label, present map[labels.Label]int, actions map[labels.Label]policy.Action) bool {
	visited := map[labels.Label]bool{from: true}
	stack := []labels.Label{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range actions[cur].SupersededByActionLabels {
			if _, ok := present[next]; !ok {
				continue
			}
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
