// Package annotate renders conflicting rules against their originating
// source text, rustc-style: a header naming the unschedulable entity, the
// file:line origin, and a source window with the offending span marked.
package annotate

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"placefix/internal/model"
)

// Annotator renders one conflicted rule.
type Annotator struct {
	entityName string
	origin     string
	window     []string
	startLine  int
	ruleLine   int
}

// New builds an annotator for a rule reported against entityName, reading
// the source window from the rule's originating file.
func New(entityName string, rule model.Rule) *Annotator {
	a := &Annotator{entityName: entityName}

	a.origin = rule.MetaFile()
	if a.origin == "" {
		a.origin = rule.File()
	}
	if a.origin == "" {
		a.origin = "unknown"
	}

	a.ruleLine = rule.MetaLine()
	if a.ruleLine == 0 {
		a.ruleLine = rule.Line()
	}

	a.window, a.startLine = readWindow(rule, a.ruleLine)
	return a
}

// EntityName returns the annotated entity.
func (a *Annotator) EntityName() string { return a.entityName }

// Window returns the extracted source lines.
func (a *Annotator) Window() []string { return a.window }

// readWindow extracts the source context: the byte range from index/len
// metadata when present, a few lines around the rule line otherwise, the
// whole file as a last resort.
func readWindow(rule model.Rule, ruleLine int) ([]string, int) {
	file := rule.MetaFile()
	if file == "" {
		return nil, 0
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, 0
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	if start, end, ok := rule.Range(); ok && end <= len(data) {
		startLine := 1 + strings.Count(string(data[:start]), "\n")
		endLine := 1 + strings.Count(string(data[:end]), "\n")
		lo := max(startLine-1, 1)
		hi := min(endLine+1, len(lines))
		return lines[lo-1 : hi], lo
	}

	if ruleLine > 0 {
		lo := max(ruleLine-2, 1)
		hi := min(ruleLine+6, len(lines))
		if lo > len(lines) {
			return lines, 1
		}
		return lines[lo-1 : hi], lo
	}

	return lines, 1
}

// Render produces the styled annotation.
func (a *Annotator) Render() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("error: Unschedulable entity: %s", a.entityName)))
	b.WriteString("\n")
	b.WriteString(originStyle.Render(fmt.Sprintf("  --> %s:%d", a.origin, a.ruleLine)))
	b.WriteString("\n")

	if len(a.window) == 0 {
		return b.String()
	}

	width := len(fmt.Sprintf("%d", a.startLine+len(a.window)-1))
	for i, line := range a.window {
		num := a.startLine + i
		gutter := fmt.Sprintf("%*d | ", width, num)
		b.WriteString(gutterStyle.Render(gutter))
		b.WriteString(line)
		b.WriteString("\n")
		if num == a.ruleLine {
			marker := strings.Repeat(" ", len(line)-len(strings.TrimLeft(line, " \t"))) +
				strings.Repeat("^", max(len(strings.TrimSpace(line)), 1))
			b.WriteString(gutterStyle.Render(fmt.Sprintf("%*s | ", width, "")))
			b.WriteString(markStyle.Render(marker))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderConflicts annotates a whole conflict map, sorted by entity name,
// separated by blank lines.
func RenderConflicts(conflicts map[string][]model.Rule) string {
	names := make([]string, 0, len(conflicts))
	for name := range conflicts {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		for _, rule := range conflicts[name] {
			parts = append(parts, New(name, rule).Render())
		}
	}
	return strings.Join(parts, "\n")
}
