package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"placefix/internal/model"
)

// Policy selects how the recommendation engine picks rules to remove.
type Policy int

const (
	// PolicyHighPriorityFirst recommends every rule conflicting a critical
	// entity; when no conflicted entity is critical it falls back to
	// PolicyAll.
	PolicyHighPriorityFirst Policy = iota
	// PolicyAll greedily covers every distinct conflicting rule list.
	PolicyAll
)

// ParsePolicy maps the CLI spelling of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "HighPriorityFirst":
		return PolicyHighPriorityFirst, nil
	case "All":
		return PolicyAll, nil
	default:
		return 0, fmt.Errorf("invalid recommend policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyAll {
		return "All"
	}
	return "HighPriorityFirst"
}

// Recommend chooses a subset of the conflicting rules whose removal makes
// the remaining constraints satisfiable for the reported entities.
func Recommend(conflicts map[string][]model.Rule, entities []model.Entity, policy Policy) []model.Rule {
	if len(conflicts) == 0 {
		return nil
	}
	if policy == PolicyHighPriorityFirst {
		if rules := recommendHighPriorityFirst(conflicts, entities); len(rules) > 0 {
			return rules
		}
	}
	return recommendAll(conflicts)
}

func recommendHighPriorityFirst(conflicts map[string][]model.Rule, entities []model.Entity) []model.Rule {
	critical := make(map[string]struct{})
	for i := range entities {
		if entities[i].Priority.IsCritical() {
			critical[entities[i].Name] = struct{}{}
		}
	}

	var rules []model.Rule
	for name, list := range conflicts {
		if _, ok := critical[name]; ok {
			rules = append(rules, list...)
		}
	}
	return model.NormalizeRules(rules)
}

func listKey(rules []model.Rule) string {
	keys := lo.Map(rules, func(r model.Rule, _ int) string { return r.Key() })
	return strings.Join(keys, "\x00")
}

// recommendAll approximates a minimum hitting set over the distinct rule
// lists: rules are ranked by how many lists they appear in, then appended
// greedily until the accumulated relation coverage (a Multi counts its
// target-set size) reaches the number of distinct lists. Lists still left
// without a chosen rule are then topped up, so every list shares at least
// one rule with the recommendation.
func recommendAll(conflicts map[string][]model.Rule) []model.Rule {
	lists := lo.UniqBy(lo.Values(conflicts), listKey)
	sort.Slice(lists, func(i, j int) bool { return listKey(lists[i]) < listKey(lists[j]) })
	listCount := len(lists)

	counts := make(map[string]int)
	byKey := make(map[string]model.Rule)
	for _, list := range lists {
		for _, r := range list {
			counts[r.Key()]++
			byKey[r.Key()] = r
		}
	}

	ranked := lo.Values(byKey)
	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := counts[ranked[i].Key()], counts[ranked[j].Key()]
		if ci != cj {
			return ci > cj
		}
		return ranked[i].Compare(ranked[j]) < 0
	})

	var out []model.Rule
	covered := 0
	for _, r := range ranked {
		if covered < listCount {
			out = append(out, r)
		}
		covered += len(r.Targets())
	}

	// The relation-coverage sum is a proxy; a list can still end up with
	// none of its rules chosen. Top up with each uncovered list's
	// highest-ranked rule so the hitting-set property always holds.
	chosen := make(map[string]struct{}, len(out))
	for _, r := range out {
		chosen[r.Key()] = struct{}{}
	}
	for _, list := range lists {
		if len(list) == 0 {
			continue
		}
		hit := false
		for _, r := range list {
			if _, ok := chosen[r.Key()]; ok {
				hit = true
				break
			}
		}
		if hit {
			continue
		}
		best := list[0]
		for _, r := range list[1:] {
			if counts[r.Key()] > counts[best.Key()] ||
				(counts[r.Key()] == counts[best.Key()] && r.Compare(best) < 0) {
				best = r
			}
		}
		out = append(out, best)
		chosen[best.Key()] = struct{}{}
	}
	return out
}
