package ir

import (
	"fmt"
	"sort"
	"strings"

	"placefix/internal/model"
)

// Format renders entities back into IR text, entities sorted by name and
// rules in their list order, so dumps diff cleanly between runs.
func Format(entities []model.Entity) string {
	sorted := append([]model.Entity(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for i := range sorted {
		writeEntity(&b, &sorted[i])
	}
	return b.String()
}

func writeEntity(b *strings.Builder, e *model.Entity) {
	for _, r := range e.Requires {
		writeRule(b, r)
	}
	for _, r := range e.Excludes {
		writeRule(b, r)
	}
}

func writeRule(b *strings.Builder, r model.Rule) {
	fmt.Fprintf(b, "%s %s %s ", r.Source(), r.Type(), strings.Join(r.Targets(), ","))
	if m := r.Meta(); m != nil {
		writeMetadata(b, m)
	}
	b.WriteString("\n")
}

func writeMetadata(b *strings.Builder, m *model.Metadata) {
	file := m.File
	if file == "" {
		file = "unknown"
	}
	fmt.Fprintf(b, "// File=%s;Line=%d;", file, m.Line)

	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s=%s;", k, m.Extra[k])
	}
}
