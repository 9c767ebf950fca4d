package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placefix/internal/model"
)

func ruleAt(source, target string, typ model.RuleType, file string, line int) model.Rule {
	return model.Mono(source, target, typ, model.NewRuleSource(file, line), nil)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("HighPriorityFirst")
	require.NoError(t, err)
	assert.Equal(t, PolicyHighPriorityFirst, p)

	p, err = ParsePolicy("All")
	require.NoError(t, err)
	assert.Equal(t, PolicyAll, p)

	_, err = ParsePolicy("bogus")
	assert.Error(t, err)
}

func TestRecommendEmptyConflicts(t *testing.T) {
	assert.Empty(t, Recommend(nil, nil, PolicyAll))
}

func TestRecommendHighPriorityFirst(t *testing.T) {
	critRule := ruleAt("crit", "x", model.Require, "crit.yaml", 3)
	otherRule := ruleAt("other", "y", model.Exclude, "other.yaml", 9)

	conflicts := map[string][]model.Rule{
		"crit":  {critRule},
		"other": {otherRule},
	}
	crit := entity("crit", nil, nil)
	crit.Priority = model.PriorityCritical
	entities := []model.Entity{crit, entity("other", nil, nil)}

	rules := Recommend(conflicts, entities, PolicyHighPriorityFirst)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Equal(critRule))
}

func TestRecommendHighPriorityFallsBackToAll(t *testing.T) {
	rule := ruleAt("a", "b", model.Exclude, "a.yaml", 1)
	conflicts := map[string][]model.Rule{"a": {rule}}
	entities := []model.Entity{entity("a", nil, nil)}

	rules := Recommend(conflicts, entities, PolicyHighPriorityFirst)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Equal(rule))
}

// Every distinct rule list must share at least one rule with the
// recommendation.
func assertCoverage(t *testing.T, conflicts map[string][]model.Rule, rules []model.Rule) {
	t.Helper()
	chosen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		chosen[r.Key()] = struct{}{}
	}
	for name, list := range conflicts {
		hit := false
		for _, r := range list {
			if _, ok := chosen[r.Key()]; ok {
				hit = true
				break
			}
		}
		assert.True(t, hit, "rule list of %s not covered", name)
	}
}

func TestRecommendAllCoverage(t *testing.T) {
	shared := ruleAt("a", "x", model.Exclude, "a.yaml", 2)
	conflicts := map[string][]model.Rule{
		"a": {shared, ruleAt("a", "y", model.Require, "a.yaml", 3)},
		"b": {shared, ruleAt("b", "z", model.Require, "b.yaml", 4)},
		"c": {ruleAt("c", "w", model.Exclude, "c.yaml", 5)},
	}

	rules := Recommend(conflicts, nil, PolicyAll)
	require.NotEmpty(t, rules)
	assertCoverage(t, conflicts, rules)

	// The shared rule dominates the count ordering.
	assert.True(t, rules[0].Equal(shared))
}

func TestRecommendAllSingleList(t *testing.T) {
	rule := ruleAt("a", "x", model.Exclude, "a.yaml", 1)
	conflicts := map[string][]model.Rule{
		"a": {rule},
		"b": {rule},
	}

	// Two entities sharing one distinct rule list need one removal.
	rules := Recommend(conflicts, nil, PolicyAll)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Equal(rule))
}

// bruteMinHitting finds a true minimum hitting set over the distinct rule
// lists, for comparing the greedy result on small instances.
func bruteMinHitting(conflicts map[string][]model.Rule) int {
	var lists [][]model.Rule
	seen := make(map[string]struct{})
	for _, list := range conflicts {
		key := ""
		for _, r := range list {
			key += r.Key() + "\x00"
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		lists = append(lists, list)
	}

	uniq := make(map[string]model.Rule)
	for _, list := range lists {
		for _, r := range list {
			uniq[r.Key()] = r
		}
	}
	var rules []model.Rule
	for _, r := range uniq {
		rules = append(rules, r)
	}

	best := len(rules)
	for mask := 0; mask < 1<<len(rules); mask++ {
		var subset []model.Rule
		for i, r := range rules {
			if mask&(1<<i) != 0 {
				subset = append(subset, r)
			}
		}
		if len(subset) >= best {
			continue
		}
		ok := true
		for _, list := range lists {
			hit := false
			for _, r := range list {
				for _, s := range subset {
					if r.Equal(s) {
						hit = true
					}
				}
			}
			if !hit {
				ok = false
				break
			}
		}
		if ok {
			best = len(subset)
		}
	}
	return best
}

func TestRecommendAllNearMinimal(t *testing.T) {
	shared := ruleAt("a", "x", model.Exclude, "a.yaml", 2)
	conflicts := map[string][]model.Rule{
		"a": {shared, ruleAt("a", "y", model.Require, "a.yaml", 3)},
		"b": {shared},
		"c": {shared, ruleAt("c", "w", model.Exclude, "c.yaml", 5)},
	}

	rules := Recommend(conflicts, nil, PolicyAll)
	assertCoverage(t, conflicts, rules)

	// Greedy is not proven minimal; track how far it drifts from the true
	// optimum on a small instance.
	min := bruteMinHitting(conflicts)
	assert.Equal(t, 1, min)
	assert.GreaterOrEqual(t, len(rules), min)
	assert.LessOrEqual(t, len(rules), 3)
}
