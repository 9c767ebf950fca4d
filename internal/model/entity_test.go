package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityAddRejectsWrongKind(t *testing.T) {
	e := NewEntity("a")
	assert.Panics(t, func() {
		e.AddRequire(Mono("a", "b", Exclude, RuleSource{}, nil))
	})
}

func TestEntityDummy(t *testing.T) {
	e := NewEntity("a")
	assert.True(t, e.IsDummy())

	e.AddRequire(Mono("a", "b", Require, RuleSource{}, nil))
	assert.False(t, e.IsDummy())
	assert.Equal(t, 1, e.RuleCount())
}

func TestEntityRulesOrder(t *testing.T) {
	e := NewEntity("a")
	e.AddExclude(Mono("a", "x", Exclude, RuleSource{}, nil))
	e.AddRequire(Mono("a", "y", Require, RuleSource{}, nil))

	rules := e.Rules()
	require.Len(t, rules, 2)
	assert.True(t, rules[0].IsRequire())
	assert.True(t, rules[1].IsExclude())
}

func TestMergeEntities(t *testing.T) {
	a1 := *NewEntityWithSource("a", FileSource("a.ir"))
	a1.AddRequire(Mono("a", "b", Require, RuleSource{}, nil))

	a2 := *NewEntityWithSource("a", FileSource("a.yaml"))
	a2.AddRequire(Mono("a", "c", Require, RuleSource{}, nil))
	a2.Priority = PriorityCritical

	b := *NewEntity("b")

	merged := MergeEntities([]Entity{a1, a2, b}, func(dst *Source, src Source) {
		*dst = src
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].Name)
	assert.Len(t, merged[0].Requires, 2)
	assert.Equal(t, FileSource("a.yaml"), merged[0].Source)
	assert.True(t, merged[0].Priority.IsCritical())
	assert.Equal(t, "b", merged[1].Name)
}

func TestMergeEntitiesDeduplicatesRules(t *testing.T) {
	rule := Mono("a", "b", Require, RuleSource{}, nil)
	a1, a2 := *NewEntity("a"), *NewEntity("a")
	a1.AddRequire(rule)
	a2.AddRequire(rule)

	merged := MergeEntities([]Entity{a1, a2}, nil)
	require.Len(t, merged, 1)
	assert.Len(t, merged[0].Requires, 1)
}

func TestEntitiesFromRules(t *testing.T) {
	rules := []Rule{
		Mono("b", "c", Exclude, RuleSource{}, nil),
		Mono("a", "b", Require, RuleSource{}, nil),
		Mono("a", "c", Require, RuleSource{}, nil),
	}
	entities := EntitiesFromRules(rules)

	require.Len(t, entities, 2)
	assert.Equal(t, "a", entities[0].Name)
	assert.Len(t, entities[0].Requires, 2)
	assert.Equal(t, "b", entities[1].Name)
	assert.Len(t, entities[1].Excludes, 1)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityCritical, ParsePriority("critical"))
	assert.Equal(t, PriorityDefault, ParsePriority("high"))
	assert.Equal(t, PriorityDefault, ParsePriority(""))
}
