package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placefix/internal/model"
)

func ringSolve(t *testing.T, entities []model.Entity) Verdict {
	t.Helper()
	m, err := BuildEntityMap(entities)
	require.NoError(t, err)
	return NewRingEngine().Solve(m)
}

func TestRingNoCycle(t *testing.T) {
	v := ringSolve(t, []model.Entity{
		entity("a", []string{"b"}, nil),
		entity("b", []string{"c"}, nil),
		entity("c", nil, nil),
	})
	assert.True(t, v.IsOk())
}

func TestRingSelfLoopIgnored(t *testing.T) {
	v := ringSolve(t, []model.Entity{
		entity("a", []string{"a"}, nil),
	})
	assert.True(t, v.IsOk())
}

func TestRingTwoCycle(t *testing.T) {
	v := ringSolve(t, []model.Entity{
		entity("a", []string{"b"}, nil),
		entity("b", []string{"a"}, nil),
	})
	require.True(t, v.IsConflict())
	assert.Equal(t, []string{"a", "b"}, v.Unschedulable())

	// Every reported rule is a require rule on an edge inside the cycle.
	for name, rules := range v.Conflicts() {
		for _, r := range rules {
			assert.True(t, r.IsRequire())
			assert.Equal(t, name, r.Source())
		}
	}
}

func TestRingLongCycle(t *testing.T) {
	v := ringSolve(t, []model.Entity{
		entity("a", []string{"b"}, nil),
		entity("b", []string{"c"}, nil),
		entity("c", []string{"a"}, nil),
	})
	require.True(t, v.IsConflict())
	assert.Equal(t, []string{"a", "b", "c"}, v.Unschedulable())
}

func TestRingMultiNeedsAllBranchesInCycles(t *testing.T) {
	// a requires one of {b, d}; only the b branch cycles back, so the
	// disjunction is satisfiable via d and nothing is reported.
	e := model.NewEntity("a")
	e.AddRequire(multi("a", []string{"b", "d"}, model.Require))

	v := ringSolve(t, []model.Entity{
		*e,
		entity("b", []string{"a"}, nil),
		entity("d", nil, nil),
	})
	assert.True(t, v.IsOk())
}

func TestRingMultiAllBranchesBlocked(t *testing.T) {
	// Both branches of the disjunction sit inside cycles back to a.
	e := model.NewEntity("a")
	e.AddRequire(multi("a", []string{"b", "c"}, model.Require))

	v := ringSolve(t, []model.Entity{
		*e,
		entity("b", []string{"a"}, nil),
		entity("c", []string{"a"}, nil),
	})
	require.True(t, v.IsConflict())
	assert.Contains(t, v.Conflicts(), "a")
}

func TestRingExcludesDoNotFormCycles(t *testing.T) {
	v := ringSolve(t, []model.Entity{
		entity("a", nil, []string{"b"}),
		entity("b", nil, []string{"a"}),
	})
	assert.True(t, v.IsOk())
}
