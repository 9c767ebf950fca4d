package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placefix/internal/model"
)

func TestUnknownAllDefined(t *testing.T) {
	m, err := BuildEntityMap([]model.Entity{
		entity("a", []string{"b"}, nil),
		entity("b", nil, nil),
	})
	require.NoError(t, err)
	assert.True(t, NewUnknownEngine().Solve(m).IsOk())
}

func TestUnknownMissingTarget(t *testing.T) {
	m, err := BuildEntityMap([]model.Entity{
		entity("a", []string{"ghost"}, nil),
	})
	require.NoError(t, err)

	v := NewUnknownEngine().Solve(m)
	require.True(t, v.IsConflict())
	assert.Equal(t, []string{"a"}, v.Unschedulable())
}

func TestUnknownMultiSingleMissingTargetFlags(t *testing.T) {
	e := model.NewEntity("a")
	e.AddRequire(multi("a", []string{"b", "ghost"}, model.Require))

	m, err := BuildEntityMap([]model.Entity{*e, entity("b", nil, nil)})
	require.NoError(t, err)

	v := NewUnknownEngine().Solve(m)
	require.True(t, v.IsConflict())
	assert.Len(t, v.Conflicts()["a"], 1)
}

func TestUnknownComposesWithOtherVerdicts(t *testing.T) {
	m, err := BuildEntityMap([]model.Entity{
		entity("a", []string{"ghost"}, nil),
	})
	require.NoError(t, err)

	v := NewUnknownEngine().Solve(m).Merge(NewSATEngine().Solve(m))
	require.True(t, v.IsConflict())
	assert.Contains(t, v.Conflicts(), "a")
}
