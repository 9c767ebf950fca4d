// Package solver implements the constraint-solving core: the preprocessed
// entity map, the three engines (sat, ring, unknown), verdict merging, the
// recommendation policies, and the topology splitter. Engines are pure
// functions of an immutable EntityMap; the only coupling between them is the
// verdict Merge operator.
package solver

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"placefix/internal/logging"
	"placefix/internal/model"
)

// EntityMap is the preprocessed, frozen problem instance the engines
// consume: the post-split entity list, the universe of every name mentioned
// anywhere, and the bookkeeping of self-conflict splits.
type EntityMap struct {
	Entities []model.Entity
	// Names is the universe: defining names plus every rule target.
	Names map[string]struct{}
	// SelfConflicts holds original names that were both self-requiring and
	// self-excluding, for diagnostics. The environment probe does not read
	// it: it selects both siblings of every split label (see Splits).
	SelfConflicts map[string]struct{}
	// Splits maps each synthesized sibling name back to the original
	// entity name it was split from.
	Splits map[string]string
}

// DuplicateEntityNameError is the fatal build failure for entity lists that
// define the same name more than once.
type DuplicateEntityNameError struct {
	Names []string
}

func (e *DuplicateEntityNameError) Error() string {
	return fmt.Sprintf("duplicate entity names: %v", e.Names)
}

// SortedNames returns the universe in sorted order, for deterministic probe
// and display iteration.
func (m *EntityMap) SortedNames() []string {
	names := lo.Keys(m.Names)
	sort.Strings(names)
	return names
}

// Original resolves a possibly-split name back to its user-visible one.
func (m *EntityMap) Original(name string) string {
	if orig, ok := m.Splits[name]; ok {
		return orig
	}
	return name
}

// Siblings returns the sibling pair an original name was split into.
func (m *EntityMap) Siblings(name string) ([2]string, bool) {
	sibs := siblingNames(name)
	if m.Splits[sibs[0]] == name && m.Splits[sibs[1]] == name {
		return sibs, true
	}
	return [2]string{}, false
}

// BuildEntityMap validates and preprocesses an entity list. It fails only on
// duplicate entity names; self-conflicting entities are rewritten into
// sibling pairs so the boolean encoding stays sound.
func BuildEntityMap(entities []model.Entity) (*EntityMap, error) {
	if err := checkDuplicateNames(entities); err != nil {
		return nil, err
	}

	split, selfConflicts, mapping := splitSelfConflicts(entities)

	splits := make(map[string]string, 2*len(mapping))
	for orig, sibs := range mapping {
		splits[sibs[0]] = orig
		splits[sibs[1]] = orig
	}

	return &EntityMap{
		Entities:      split,
		Names:         collectNames(split),
		SelfConflicts: selfConflicts,
		Splits:        splits,
	}, nil
}

func checkDuplicateNames(entities []model.Entity) error {
	dups := lo.FindDuplicatesBy(entities, func(e model.Entity) string { return e.Name })
	if len(dups) == 0 {
		return nil
	}
	names := lo.Map(dups, func(e model.Entity, _ int) string { return e.Name })
	sort.Strings(names)
	return &DuplicateEntityNameError{Names: names}
}

func siblingNames(name string) [2]string {
	return [2]string{name + "_1", name + "_2"}
}

// splitSelfConflicts rewrites every self-excluding entity X into siblings
// X_1/X_2 and then rewrites all remaining references to X across the system.
func splitSelfConflicts(entities []model.Entity) ([]model.Entity, map[string]struct{}, map[string][2]string) {
	mapping := make(map[string][2]string)
	selfConflicts := make(map[string]struct{})

	out := make([]model.Entity, 0, len(entities))
	for i := range entities {
		e := entities[i]
		name := e.Name

		selfExcluding := lo.SomeBy(e.Excludes, func(r model.Rule) bool {
			return r.HasTarget(name)
		})
		if !selfExcluding {
			out = append(out, e.Clone())
			continue
		}

		// A Multi require with an alternative branch is satisfiable without
		// the self edge, so only all-self requires count here.
		selfRequiring := lo.SomeBy(e.Requires, func(r model.Rule) bool {
			return lo.EveryBy(r.Targets(), func(t string) bool { return t == name })
		})
		if selfRequiring {
			selfConflicts[name] = struct{}{}
			logging.L(logging.CategorySolver).Warnf(
				"entity %q has both self-affinity and self-anti-affinity", name)
		}

		sibs := siblingNames(name)
		mapping[name] = sibs

		e1, e2 := e.Clone(), e.Clone()
		e1.Name, e2.Name = sibs[0], sibs[1]
		e1.Source, e2.Source = e.Source, e.Source

		// Requires that target X hold for the entity itself; both copies
		// must carry the obligation, so the rule force-splits into one rule
		// per sibling rather than a weakened disjunction.
		e1.Requires = forceSplitRules(e1.Requires, name, sibs)
		e2.Requires = forceSplitRules(e2.Requires, name, sibs)

		// Excludes rename X to the other sibling only: a copy conflicts
		// with its twin, not with itself.
		e1.Excludes = renameTargets(e1.Excludes, name, sibs[1])
		e2.Excludes = renameTargets(e2.Excludes, name, sibs[0])

		out = append(out, e1, e2)
	}

	if len(mapping) == 0 {
		return out, selfConflicts, mapping
	}

	// Final pass: every remaining reference to a split original is
	// rewritten in terms of the siblings.
	for i := range out {
		out[i].Requires = splitRequireRefs(out[i].Requires, mapping)
		out[i].Excludes = splitExcludeRefs(out[i].Excludes, mapping)
	}
	return out, selfConflicts, mapping
}

// forceSplitRules turns each rule targeting from into a family of rules, one
// per sibling, substituting the sibling at the from position.
func forceSplitRules(rules []model.Rule, from string, siblings [2]string) []model.Rule {
	var out []model.Rule
	for _, r := range rules {
		if !r.HasTarget(from) {
			out = append(out, r)
			continue
		}
		for _, sib := range siblings {
			if r.IsMono() {
				out = append(out, model.Mono(r.Source(), sib, r.Type(), r.Origin(), r.Meta()))
				continue
			}
			targets := lo.Map(r.Targets(), func(t string, _ int) string {
				if t == from {
					return sib
				}
				return t
			})
			out = append(out, model.Multi(r.Source(), targets, r.Type(), r.Origin(), r.Meta()))
		}
	}
	return model.NormalizeRules(out)
}

// renameTargets substitutes to for from in every rule's target position.
func renameTargets(rules []model.Rule, from, to string) []model.Rule {
	out := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if !r.HasTarget(from) {
			out = append(out, r)
			continue
		}
		if r.IsMono() {
			out = append(out, model.Mono(r.Source(), to, r.Type(), r.Origin(), r.Meta()))
			continue
		}
		targets := lo.Map(r.Targets(), func(t string, _ int) string {
			if t == from {
				return to
			}
			return t
		})
		out = append(out, model.Multi(r.Source(), targets, r.Type(), r.Origin(), r.Meta()))
	}
	return model.NormalizeRules(out)
}

// splitRequireRefs rewrites require references to split names: a Mono target
// is promoted to a Multi over both siblings, and a Multi set has each split
// name expanded in place. Either copy satisfies the requirement, so widening
// the disjunction is exact.
func splitRequireRefs(rules []model.Rule, mapping map[string][2]string) []model.Rule {
	out := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		touched := lo.SomeBy(r.Targets(), func(t string) bool {
			_, ok := mapping[t]
			return ok
		})
		if !touched {
			out = append(out, r)
			continue
		}
		targets := lo.FlatMap(r.Targets(), func(t string, _ int) []string {
			if sibs, ok := mapping[t]; ok {
				return sibs[:]
			}
			return []string{t}
		})
		out = append(out, model.Multi(r.Source(), targets, r.Type(), r.Origin(), r.Meta()))
	}
	return model.NormalizeRules(out)
}

// splitExcludeRefs rewrites exclude references to split names: excluding X
// means excluding both copies, so a Mono becomes two Monos and a Multi
// becomes two Multis, one mapped to each sibling column.
func splitExcludeRefs(rules []model.Rule, mapping map[string][2]string) []model.Rule {
	var out []model.Rule
	for _, r := range rules {
		touched := lo.SomeBy(r.Targets(), func(t string) bool {
			_, ok := mapping[t]
			return ok
		})
		if !touched {
			out = append(out, r)
			continue
		}
		if r.IsMono() {
			sibs := mapping[r.Target()]
			out = append(out,
				model.Mono(r.Source(), sibs[0], r.Type(), r.Origin(), r.Meta()),
				model.Mono(r.Source(), sibs[1], r.Type(), r.Origin(), r.Meta()))
			continue
		}
		for side := 0; side < 2; side++ {
			targets := lo.Map(r.Targets(), func(t string, _ int) string {
				if sibs, ok := mapping[t]; ok {
					return sibs[side]
				}
				return t
			})
			out = append(out, model.Multi(r.Source(), targets, r.Type(), r.Origin(), r.Meta()))
		}
	}
	return model.NormalizeRules(out)
}

func collectNames(entities []model.Entity) map[string]struct{} {
	names := make(map[string]struct{})
	for i := range entities {
		names[entities[i].Name] = struct{}{}
		for _, r := range entities[i].Rules() {
			for _, t := range r.Targets() {
				names[t] = struct{}{}
			}
		}
	}
	return names
}
