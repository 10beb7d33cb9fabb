package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/internal/source"
	"github.com/xkilldash9x/taintscope/internal/taint"
)

func testSpan(line int) source.Span {
	return source.Span{File: "app.js", StartLine: line, StartCol: 1}
}

func TestClassifyTagsCallsAndIdentifiers(t *testing.T) {
	rs, err := Parse([]byte(minimalCatalog))
	require.NoError(t, err)

	g := taint.NewGraph("app.js")
	src := g.AddNode(source.KindCall, "getQueryParam", testSpan(1), false)
	mid := g.AddNode(source.KindIdentifier, "id", testSpan(2), false)
	san := g.AddNode(source.KindCall, "db.prepareStatement", testSpan(3), false)
	sink := g.AddNode(source.KindCall, "db.conn.executeQuery", testSpan(4), false)

	require.NoError(t, Classify(g, rs))

	assert.Equal(t, taint.TagSource, g.TagFor(src, "SQLI"))
	assert.Equal(t, taint.TagPlain, g.TagFor(mid, "SQLI"))
	assert.Equal(t, taint.TagSanitizer, g.TagFor(san, "SQLI"))
	assert.Equal(t, taint.TagSink, g.TagFor(sink, "SQLI"))
}

func TestClassifyIdentifierSourceRead(t *testing.T) {
	rs := Default()

	g := taint.NewGraph("app.js")
	read := g.AddNode(source.KindIdentifier, "req.query.id", testSpan(1), false)
	plain := g.AddNode(source.KindIdentifier, "config.id", testSpan(2), false)

	require.NoError(t, Classify(g, rs))

	assert.Equal(t, taint.TagSource, g.TagFor(read, "SQLI"))
	assert.Equal(t, taint.TagPlain, g.TagFor(plain, "SQLI"))
}

func TestClassifyIdentifierSinkWrite(t *testing.T) {
	// el.innerHTML = tainted: the assignment target is the sink.
	rs := Default()

	g := taint.NewGraph("app.js")
	def := g.AddNode(source.KindIdentifier, "el.innerHTML", testSpan(1), false)

	require.NoError(t, Classify(g, rs))
	assert.Equal(t, taint.TagSink, g.TagFor(def, "XSS"))
}

func TestClassifySanitizerWinsOverSink(t *testing.T) {
	rs, err := Parse([]byte(`
rules:
  - id: AMB
    title: Ambiguous
    severity: high
    message: m
    sources: [input]
    sinks: [clean]
    sanitizers: [clean]
`))
	require.NoError(t, err)

	g := taint.NewGraph("app.js")
	n := g.AddNode(source.KindCall, "clean", testSpan(1), false)

	require.NoError(t, Classify(g, rs))
	assert.Equal(t, taint.TagSanitizer, g.TagFor(n, "AMB"))
}

func TestClassifyMultipleRulesIndependently(t *testing.T) {
	rs := Default()

	g := taint.NewGraph("app.js")
	n := g.AddNode(source.KindCall, "getQueryParam", testSpan(1), false)

	require.NoError(t, Classify(g, rs))

	// getQueryParam feeds several rules at once; each gets its own tag.
	assert.Equal(t, taint.TagSource, g.TagFor(n, "SQLI"))
	assert.Equal(t, taint.TagSource, g.TagFor(n, "XSS"))
	assert.Equal(t, taint.TagSource, g.TagFor(n, "CMDI"))
}

func TestClassifyEndToEndWithBuilder(t *testing.T) {
	// The full pipeline below the engine: model -> graph -> tags -> paths.
	unit := &source.Unit{File: "app.js"}
	nodes := []struct {
		kind   source.Kind
		name   string
		parent int
	}{
		{source.KindBlock, "", -1},
		{source.KindAssignment, "", 0},
		{source.KindIdentifier, "id", 1},
		{source.KindCall, "getQueryParam", 1},
		{source.KindCall, "executeQuery", 0},
		{source.KindIdentifier, "id", 4},
	}
	for i, n := range nodes {
		unit.Nodes = append(unit.Nodes, source.Node{
			ID: i, Kind: n.kind, Name: n.name, Parent: n.parent,
			Span: testSpan(i + 1),
		})
		if n.parent >= 0 {
			unit.Nodes[n.parent].Children = append(unit.Nodes[n.parent].Children, i)
		}
	}

	g, err := taint.NewBuilder(zap.NewNop()).Build(unit)
	require.NoError(t, err)
	require.NoError(t, Classify(g, Default()))

	paths := g.Evaluate("SQLI")
	require.Len(t, paths, 1)
	first := g.Node(paths[0].Nodes[0])
	last := g.Node(paths[0].Nodes[len(paths[0].Nodes)-1])
	assert.Equal(t, "getQueryParam", first.Name)
	assert.Equal(t, "executeQuery", last.Name)
}
