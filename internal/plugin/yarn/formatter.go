package yarn

import (
	"fmt"
	"sort"
	"strings"

	"placefix/internal/model"
)

// Format renders entities back into a single placement-spec line, e.g.
// hbase=5,IN,RACK,zk:zk=3,NOTIN,NODE,hbase. Entities sort by name so the
// output is stable.
func Format(entities []model.Entity) string {
	sorted := make([]model.Entity, 0, len(entities))
	for i := range entities {
		if !entities[i].IsDummy() {
			sorted = append(sorted, entities[i])
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	parts := make([]string, 0, len(sorted))
	for i := range sorted {
		parts = append(parts, formatEntity(&sorted[i]))
	}
	return strings.Join(parts, ":")
}

func formatEntity(e *model.Entity) string {
	rules := e.Rules()

	num := "0"
	if n, ok := rules[0].Lookup("numberOfContainer"); ok {
		num = n
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s,", e.Name, num)

	if len(rules) == 1 {
		b.WriteString(formatRule(rules[0]))
		return b.String()
	}

	inner := make([]string, 0, len(rules))
	for _, r := range rules {
		inner = append(inner, formatRule(r))
	}
	fmt.Fprintf(&b, "AND(%s)", strings.Join(inner, ":"))
	return b.String()
}

func formatRule(r model.Rule) string {
	scope := "NODE"
	if s, ok := r.Lookup("scope"); ok {
		scope = s
	}
	op := "IN"
	if r.IsExclude() {
		op = "NOTIN"
	}

	targets := r.Targets()
	if len(targets) == 1 {
		return fmt.Sprintf("%s,%s,%s", op, scope, targets[0])
	}

	inner := make([]string, 0, len(targets))
	for _, t := range targets {
		inner = append(inner, fmt.Sprintf("%s,%s,%s", op, scope, t))
	}
	// Require disjunctions round-trip as OR; exclude sets are conjunctive
	// and round-trip as AND.
	if r.IsRequire() {
		return fmt.Sprintf("OR(%s)", strings.Join(inner, ":"))
	}
	return fmt.Sprintf("AND(%s)", strings.Join(inner, ":"))
}
