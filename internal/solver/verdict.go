package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"placefix/internal/model"
)

// Verdict is the two-valued solver output: Ok, or a conflict map from
// unschedulable entity name to the rules that explain the failure. Conflict
// rule lists are always sorted and duplicate-free so verdicts render
// byte-identically across runs.
type Verdict struct {
	conflicts map[string][]model.Rule
}

// Ok is the satisfiable verdict.
func Ok() Verdict {
	return Verdict{}
}

// NewConflict builds a conflict verdict, normalizing every rule list. An
// empty map yields Ok.
func NewConflict(conflicts map[string][]model.Rule) Verdict {
	if len(conflicts) == 0 {
		return Ok()
	}
	norm := make(map[string][]model.Rule, len(conflicts))
	for name, rules := range conflicts {
		norm[name] = model.NormalizeRules(append([]model.Rule(nil), rules...))
	}
	return Verdict{conflicts: norm}
}

// IsOk reports whether the verdict is satisfiable.
func (v Verdict) IsOk() bool { return len(v.conflicts) == 0 }

// IsConflict reports whether the verdict carries conflicts.
func (v Verdict) IsConflict() bool { return !v.IsOk() }

// Conflicts returns the conflict map; nil for Ok verdicts.
func (v Verdict) Conflicts() map[string][]model.Rule { return v.conflicts }

// Unschedulable returns the conflicted entity names, sorted.
func (v Verdict) Unschedulable() []string {
	names := lo.Keys(v.conflicts)
	sort.Strings(names)
	return names
}

// Merge combines two verdicts: Ok is the identity, and two conflict maps
// union per-name rule lists with re-normalization.
func (v Verdict) Merge(other Verdict) Verdict {
	if v.IsOk() {
		return other
	}
	if other.IsOk() {
		return v
	}
	merged := make(map[string][]model.Rule, len(v.conflicts)+len(other.conflicts))
	for name, rules := range v.conflicts {
		merged[name] = append(merged[name], rules...)
	}
	for name, rules := range other.conflicts {
		merged[name] = append(merged[name], rules...)
	}
	return NewConflict(merged)
}

// String renders conflicts sorted by name, one rule per line.
func (v Verdict) String() string {
	if v.IsOk() {
		return "Verdict::Ok"
	}
	var b strings.Builder
	for _, name := range v.Unschedulable() {
		fmt.Fprintf(&b, "Unschedulable: %s\n", name)
		b.WriteString("  Conflicts:\n")
		for _, r := range v.conflicts[name] {
			fmt.Fprintf(&b, "  %s\n", r)
		}
	}
	return b.String()
}
