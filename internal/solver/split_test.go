package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placefix/internal/model"
)

func taggedRule(source, target string, typ model.RuleType, topo string) model.Rule {
	var meta *model.Metadata
	if topo != "" {
		meta = model.NewMetadata("", 0, map[string]string{model.MetadataTopologyKey: topo})
	}
	return model.Mono(source, target, typ, model.RuleSource{}, meta)
}

func TestSplitByTopology(t *testing.T) {
	a := model.NewEntity("a")
	a.AddRequire(taggedRule("a", "b", model.Require, "zone"))
	a.AddRequire(taggedRule("a", "c", model.Require, "node"))
	a.AddExclude(taggedRule("a", "d", model.Exclude, "zone"))

	b := model.NewEntity("b")
	b.AddRequire(taggedRule("b", "a", model.Require, ""))

	parts := SplitByTopology([]model.Entity{*a, *b}, "node")
	require.Len(t, parts, 2)

	zone := parts["zone"]
	require.Len(t, zone, 1)
	assert.Equal(t, "a", zone[0].Name)
	assert.Len(t, zone[0].Requires, 1)
	assert.Len(t, zone[0].Excludes, 1)

	// The untagged rule lands in the default partition.
	node := parts["node"]
	require.Len(t, node, 2)
	names := []string{node[0].Name, node[1].Name}
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestSplitPreservesEntityAttributes(t *testing.T) {
	a := model.NewEntityWithSource("a", model.FileSource("a.yaml"))
	a.Priority = model.PriorityCritical
	a.AddRequire(taggedRule("a", "b", model.Require, "rack"))

	parts := SplitByTopology([]model.Entity{*a}, "node")
	require.Len(t, parts, 1)
	part := parts["rack"][0]
	assert.Equal(t, model.FileSource("a.yaml"), part.Source)
	assert.True(t, part.Priority.IsCritical())
}

func TestSplitDropsRulelessEntities(t *testing.T) {
	parts := SplitByTopology([]model.Entity{*model.NewEntity("dummy")}, "node")
	assert.Empty(t, parts)
}
