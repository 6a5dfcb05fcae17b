package engine

import (
	"fmt"
	"slices"
	"testing"

	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

// small label universes, so random rules and matches overlap often
func randomLabels(f *gofakeit.Faker, universe []labels.Label, max int) []labels.Label {
	n := f.Number(0, max)
	out := make([]labels.Label, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, universe[f.Number(0, len(universe)-1)])
	}
	return out
}

func randomUniverse(f *gofakeit.Faker) (matchLabels, actionLabels []labels.Label) {
	for i := 0; i < 6; i++ {
		matchLabels = append(matchLabels, labels.New(f.RandomString([]string{"Collaboration", "Dataset"}), fmt.Sprintf("m%d", i)))
	}
	for i := 0; i < 5; i++ {
		actionLabels = append(actionLabels, labels.Action(fmt.Sprintf("A%d", i)))
	}
	return matchLabels, actionLabels
}

func TestEvaluateRulesRandomized(t *testing.T) {
	assert := assert.New(t)
	f := gofakeit.New(1234)
	matchUniverse, actionUniverse := randomUniverse(f)

	for round := 0; round < 200; round++ {
		var rules []policy.ActionRule
		for i := f.Number(0, 8); i > 0; i-- {
			rules = append(rules, policy.ActionRule{
				MustHaveLabels:    randomLabels(f, matchUniverse, 2),
				MustNotHaveLabels: randomLabels(f, matchUniverse, 1),
				ActionLabel:       actionUniverse[f.Number(0, len(actionUniverse)-1)],
			})
		}
		m := testMatch(randomLabels(f, matchUniverse, 4)...)
		set := m.LabelSet()

		out := EvaluateRules(m, rules)
		assert.NotNil(out)
		assert.Equal(out, EvaluateRules(m, rules))
		assert.Equal(len(out), labels.NewSet(out...).Len(), "round %d: duplicate action labels %v", round, out)

		for _, r := range rules {
			if RuleApplies(&r, set) {
				assert.Contains(out, r.ActionLabel)
			}
		}
		for _, l := range out {
			assert.True(slices.ContainsFunc(rules, func(r policy.ActionRule) bool {
				return r.ActionLabel == l && RuleApplies(&r, set)
			}), "round %d: %s has no applying rule", round, l)
		}
	}
}

func TestResolveSupersessionRandomized(t *testing.T) {
	assert := assert.New(t)
	f := gofakeit.New(5678)
	_, universe := randomUniverse(f)
	unknown := labels.Action("NotConfigured")

	for round := 0; round < 200; round++ {
		acts := make(map[labels.Label]policy.Action)
		for _, l := range universe {
			if f.Bool() {
				acts[l] = act(l, f.Number(0, 3), randomLabels(f, universe, 2)...)
			}
		}
		in := labels.Dedupe(randomLabels(f, universe, 5))
		if f.Bool() {
			in = append(in, unknown)
		}

		out, _ := resolveSupersession(in, acts)
		assert.NotNil(out)

		// output is an order-preserving subsequence of the input
		i := 0
		for _, l := range out {
			for i < len(in) && in[i] != l {
				i++
			}
			assert.Less(i, len(in), "round %d: %v not a subsequence of %v", round, out, in)
			i++
		}
		if slices.Contains(in, unknown) {
			assert.Contains(out, unknown)
		}
		// a label is only removed when a defined label from the input lists it
		for _, y := range in {
			if slices.Contains(out, y) {
				continue
			}
			_, defined := acts[y]
			assert.True(defined, "round %d: undefined %s removed", round, y)
			assert.True(slices.ContainsFunc(in, func(x labels.Label) bool {
				a, ok := acts[x]
				return ok && x != y && slices.Contains(a.SupersededByActionLabels, y)
			}), "round %d: %s removed but nothing in %v supersedes it", round, y, in)
		}
		// counted edges never form a cycle, so something always survives
		if len(in) > 0 {
			assert.NotEmpty(out, "round %d: every action removed from %v", round, in)
		}

		again, _ := resolveSupersession(in, acts)
		assert.Equal(out, again, "round %d: not deterministic", round)
	}
}
