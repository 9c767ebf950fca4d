package yarn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placefix/internal/model"
)

func TestParseSingleConstraints(t *testing.T) {
	entities, err := Parse("zk=3,NOTIN,NODE,zk:hbase=5,IN,RACK,zk", "app.spec")
	require.NoError(t, err)
	require.Len(t, entities, 2)

	hbase, zk := entities[0], entities[1]
	assert.Equal(t, "hbase", hbase.Name)
	assert.Equal(t, "zk", zk.Name)

	require.Len(t, zk.Excludes, 1)
	assert.Equal(t, "zk", zk.Excludes[0].Target())
	topo, _ := zk.Excludes[0].Topology()
	assert.Equal(t, "node", topo)
	num, _ := zk.Excludes[0].Lookup("numberOfContainer")
	assert.Equal(t, "3", num)

	require.Len(t, hbase.Requires, 1)
	topo, _ = hbase.Requires[0].Topology()
	assert.Equal(t, "rack", topo)
	scope, _ := hbase.Requires[0].Lookup("scope")
	assert.Equal(t, "RACK", scope)
}

func TestParseContainerCountOnly(t *testing.T) {
	entities, err := Parse("zk=3", "app.spec")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestParseAndComposite(t *testing.T) {
	entities, err := Parse("app=2,AND(IN,NODE,db:NOTIN,NODE,web)", "app.spec")
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	require.Len(t, e.Requires, 1)
	assert.Equal(t, "db", e.Requires[0].Target())
	require.Len(t, e.Excludes, 1)
	assert.Equal(t, "web", e.Excludes[0].Target())
}

func TestParseOrOfRequiresBecomesMulti(t *testing.T) {
	entities, err := Parse("app=2,OR(IN,NODE,db:IN,NODE,cache)", "app.spec")
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	require.Len(t, e.Requires, 1)
	r := e.Requires[0]
	assert.True(t, r.IsMulti())
	assert.ElementsMatch(t, []string{"db", "cache"}, r.Targets())
}

func TestParseOrOfExcludesStaysConjunctive(t *testing.T) {
	entities, err := Parse("app=2,OR(NOTIN,NODE,db:NOTIN,NODE,web)", "app.spec")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Len(t, entities[0].Excludes, 2)
}

func TestParseCardinalitySkipped(t *testing.T) {
	entities, err := Parse("zk=3,CARDINALITY,NODE,zk,0,5", "app.spec")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestParseMixedOrSkipped(t *testing.T) {
	entities, err := Parse("app=2,OR(IN,NODE,db:NOTIN,NODE,web)", "app.spec")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestParseMalformedLine(t *testing.T) {
	_, err := Parse("this is not a spec", "app.spec")
	assert.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	entities, err := Parse("hbase=5,IN,RACK,zk:zk=3,NOTIN,NODE,zk", "app.spec")
	require.NoError(t, err)

	out := Format(entities)
	assert.Equal(t, "hbase=5,IN,RACK,zk:zk=3,NOTIN,NODE,zk", out)

	back, err := Parse(out, "app.spec")
	require.NoError(t, err)
	assert.Equal(t, out, Format(back))
}

func TestFormatMultiRule(t *testing.T) {
	e := model.NewEntity("app")
	e.AddRequire(model.Multi("app", []string{"cache", "db"}, model.Require,
		model.RuleSource{},
		model.NewMetadata("", 0, map[string]string{
			"scope":             "NODE",
			"numberOfContainer": "2",
		})))

	out := Format([]model.Entity{*e})
	assert.Equal(t, "app=2,OR(IN,NODE,cache:IN,NODE,db)", out)
}

func TestFormatExcludeSetUsesAnd(t *testing.T) {
	e := model.NewEntity("app")
	e.AddExclude(model.Multi("app", []string{"db", "web"}, model.Exclude,
		model.RuleSource{},
		model.NewMetadata("", 0, map[string]string{
			"scope":             "NODE",
			"numberOfContainer": "1",
		})))

	out := Format([]model.Entity{*e})
	assert.Equal(t, "app=1,AND(NOTIN,NODE,db:NOTIN,NODE,web)", out)
}
