package solver

import (
	"placefix/internal/model"
)

// UnknownEngine reports rules that reference names with no defining entity.
// A single missing target convicts a Multi rule. The verdict composes with
// the other engines' output instead of failing the solve.
type UnknownEngine struct{}

// NewUnknownEngine returns an unknown-target engine.
func NewUnknownEngine() *UnknownEngine { return &UnknownEngine{} }

// Name implements Engine.
func (*UnknownEngine) Name() string { return "unknown" }

// Solve implements Engine.
func (e *UnknownEngine) Solve(m *EntityMap) Verdict {
	defined := make(map[string]struct{}, len(m.Entities))
	for i := range m.Entities {
		defined[m.Entities[i].Name] = struct{}{}
	}

	conflicts := make(map[string][]model.Rule)
	for i := range m.Entities {
		ent := &m.Entities[i]
		for _, r := range ent.Rules() {
			for _, t := range r.Targets() {
				if _, ok := defined[t]; !ok {
					conflicts[ent.Name] = append(conflicts[ent.Name], r)
					break
				}
			}
		}
	}
	return NewConflict(conflicts)
}
