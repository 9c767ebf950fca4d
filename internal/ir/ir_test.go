package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placefix/internal/model"
)

func TestParseBasicRules(t *testing.T) {
	data := `
app=a require app=b
app=a exclude app=c,app=d
`
	entities, err := Parse(data, model.FileSource("rules.ir"))
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, "app=a", e.Name)
	assert.Equal(t, model.FileSource("rules.ir"), e.Source)

	require.Len(t, e.Requires, 1)
	assert.Equal(t, "app=b", e.Requires[0].Target())
	assert.Equal(t, "rules.ir", e.Requires[0].File())
	assert.Equal(t, 2, e.Requires[0].Line())

	require.Len(t, e.Excludes, 1)
	assert.True(t, e.Excludes[0].IsMulti())
	assert.Equal(t, []string{"app=c", "app=d"}, e.Excludes[0].Targets())
}

func TestParseMetadataTrailer(t *testing.T) {
	data := `a require b // File=pod.yaml;Line=12;topology=zone;index=80;len=40;`

	entities, err := Parse(data, model.FileSource("rules.ir"))
	require.NoError(t, err)
	require.Len(t, entities, 1)

	r := entities[0].Requires[0]
	assert.Equal(t, "pod.yaml", r.MetaFile())
	assert.Equal(t, 12, r.MetaLine())
	topo, _ := r.Topology()
	assert.Equal(t, "zone", topo)
	start, end, ok := r.Range()
	assert.True(t, ok)
	assert.Equal(t, 80, start)
	assert.Equal(t, 120, end)

	// The rule source still points at the IR input.
	assert.Equal(t, "rules.ir", r.File())
	assert.Equal(t, 1, r.Line())
}

func TestParseMetadataDefaults(t *testing.T) {
	data := `a require b // topology=node;`

	entities, err := Parse(data, model.FileSource("rules.ir"))
	require.NoError(t, err)
	r := entities[0].Requires[0]
	assert.Equal(t, "rules.ir", r.MetaFile())
	assert.Equal(t, 1, r.MetaLine())
}

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	data := `
// a full-line comment
a require b

`
	entities, err := Parse(data, model.SourceUnknown)
	require.NoError(t, err)
	require.Len(t, entities, 1)
}

func TestParseReportsAllBadLines(t *testing.T) {
	data := `
a require b
garbage line here and more
a frobnicate b
`
	_, err := Parse(data, model.SourceUnknown)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Len(t, perr.Lines, 2)
	assert.Contains(t, perr.Lines[0], "line 3")
	assert.Contains(t, perr.Lines[1], "line 4")
}

func TestFormatRoundTrip(t *testing.T) {
	data := `b exclude c,d // File=b.yaml;Line=7;topology=rack;
a require b // File=a.yaml;Line=3;topology=node;
`
	entities, err := Parse(data, model.FileSource("rules.ir"))
	require.NoError(t, err)

	out := Format(entities)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	// Entities sort by name on output.
	assert.True(t, strings.HasPrefix(lines[0], "a require b"))
	assert.True(t, strings.HasPrefix(lines[1], "b exclude c,d"))

	// Formatting is a fixed point.
	back, err := Parse(out, model.FileSource("rules.ir"))
	require.NoError(t, err)
	assert.Equal(t, out, Format(back))
}

func TestFormatDeterministic(t *testing.T) {
	entities, err := Parse("z require y\na require b\n", model.SourceUnknown)
	require.NoError(t, err)
	assert.Equal(t, Format(entities), Format(entities))
}
