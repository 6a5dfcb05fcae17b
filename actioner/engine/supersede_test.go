package engine

import (
	"log/slog"
	"testing"

	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"

	"github.com/stretchr/testify/assert"
)

func actionMap(acts ...policy.Action) map[labels.Label]policy.Action {
	out := make(map[labels.Label]policy.Action, len(acts))
	for _, a := range acts {
		out[a.ActionLabel] = a
	}
	return out
}

func act(l labels.Label, prio int, supersedes ...labels.Label) policy.Action {
	return policy.Action{ActionLabel: l, Priority: prio, SupersededByActionLabels: supersedes}
}

func TestResolveSupersession(t *testing.T) {
	assert := assert.New(t)
	logger := slog.Default()

	a := labels.Action("A")
	b := labels.Action("B")
	c := labels.Action("C")
	u := labels.Action("Unknown")

	// simple pair
	actions := actionMap(act(a, 1, b), act(b, 2))
	assert.Equal([]labels.Label{a}, ResolveSupersession(logger, []labels.Label{a, b}, actions))
	assert.Equal([]labels.Label{a}, ResolveSupersession(logger, []labels.Label{b, a}, actions))

	// superseding label not present: nothing removed
	assert.Equal([]labels.Label{b}, ResolveSupersession(logger, []labels.Label{b}, actions))

	// chain closes transitively
	actions = actionMap(act(a, 1, b), act(b, 2, c), act(c, 3))
	assert.Equal([]labels.Label{a}, ResolveSupersession(logger, []labels.Label{a, b, c}, actions))
	assert.Equal([]labels.Label{a}, ResolveSupersession(logger, []labels.Label{c, b, a}, actions))
	assert.Equal([]labels.Label{b}, ResolveSupersession(logger, []labels.Label{b, c}, actions))

	// unknown labels pass through, keeping position
	assert.Equal([]labels.Label{u, a}, ResolveSupersession(logger, []labels.Label{u, a, b}, actions))
	assert.Equal([]labels.Label{c, u}, ResolveSupersession(logger, []labels.Label{c, u}, actions))

	// empty
	assert.Empty(ResolveSupersession(logger, nil, actions))
}

func TestResolveSupersessionIsClosed(t *testing.T) {
	assert := assert.New(t)
	logger := slog.Default()

	a := labels.Action("A")
	b := labels.Action("B")
	c := labels.Action("C")
	d := labels.Action("D")
	actions := actionMap(act(a, 1, b), act(b, 2, c), act(c, 3, d), act(d, 4))

	inputs := [][]labels.Label{
		{a, b, c, d},
		{d, c, b, a},
		{b, d},
		{c, a},
		{d},
	}
	for _, in := range inputs {
		once := ResolveSupersession(logger, in, actions)
		twice := ResolveSupersession(logger, once, actions)
		assert.Equal(once, twice)
		// only removes
		assert.LessOrEqual(len(once), len(in))
	}
}

func TestResolveSupersessionCycles(t *testing.T) {
	assert := assert.New(t)

	a := labels.Action("A")
	b := labels.Action("B")
	c := labels.Action("C")

	// mutual: lower priority number wins
	actions := actionMap(act(a, 2, b), act(b, 1, a))
	out, anomalies := resolveSupersession([]labels.Label{a, b}, actions)
	assert.Equal([]labels.Label{b}, out)
	assert.Len(anomalies, 1)
	assert.ErrorIs(anomalies[0], ErrConfigAnomaly)

	// mutual with equal priority: first seen wins
	actions = actionMap(act(a, 1, b), act(b, 1, a))
	out, _ = resolveSupersession([]labels.Label{a, b}, actions)
	assert.Equal([]labels.Label{a}, out)
	out, _ = resolveSupersession([]labels.Label{b, a}, actions)
	assert.Equal([]labels.Label{b}, out)

	// longer cycle: the top precedence member survives
	actions = actionMap(act(a, 1, b), act(b, 2, c), act(c, 3, a))
	out, anomalies = resolveSupersession([]labels.Label{c, b, a}, actions)
	assert.Equal([]labels.Label{a}, out)
	assert.NotEmpty(anomalies)

	// cycle members not all present: no anomaly
	out, anomalies = resolveSupersession([]labels.Label{b, c}, actions)
	assert.Equal([]labels.Label{b}, out)
	assert.Empty(anomalies)
}
