package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func parseUnit(t *testing.T, file, src string) *Unit {
	t.Helper()
	a := NewAdapter(zap.NewNop())
	unit, err := a.Parse(context.Background(), file, []byte(src))
	require.NoError(t, err)
	require.NotNil(t, unit)
	return unit
}

// byKind collects the nodes of one kind in document order.
func byKind(u *Unit, k Kind) []Node {
	var out []Node
	for _, n := range u.Nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

func TestAdapterSupported(t *testing.T) {
	a := NewAdapter(zap.NewNop())
	assert.True(t, a.Supported("handlers/user.js"))
	assert.True(t, a.Supported("app/views.PY"))
	assert.True(t, a.Supported("lib/index.mjs"))
	assert.False(t, a.Supported("main.go"))
	assert.False(t, a.Supported("README.md"))
}

func TestParseRejectsUnsupportedExtension(t *testing.T) {
	a := NewAdapter(zap.NewNop())
	_, err := a.Parse(context.Background(), "main.rs", []byte("fn main() {}"))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "main.rs", pe.File)
}

func TestParseSyntaxErrorReturnsParseError(t *testing.T) {
	a := NewAdapter(zap.NewNop())
	_, err := a.Parse(context.Background(), "bad.js", []byte("var x = ;\n"))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad.js", pe.File)
	assert.Equal(t, 1, pe.Line)
	assert.NotEmpty(t, pe.Message)
}

func TestParseJavaScriptNewExpression(t *testing.T) {
	unit := parseUnit(t, "app.js", `
var f = new Function(code);
`)

	calls := byKind(unit, KindCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "Function", calls[0].Name)
	require.Len(t, calls[0].Children, 1)
	arg := unit.Node(calls[0].Children[0])
	assert.Equal(t, KindIdentifier, arg.Kind)
	assert.Equal(t, "code", arg.Name)
}

func TestParseJavaScriptAssignmentAndCall(t *testing.T) {
	unit := parseUnit(t, "app.js", `
var id = getQueryParam(req, "id");
var q = "SELECT * FROM users WHERE id = " + id;
executeQuery(q);
`)

	assigns := byKind(unit, KindAssignment)
	require.Len(t, assigns, 2)

	// First assignment: target "id", value the getQueryParam call.
	target := unit.Node(assigns[0].Children[0])
	assert.Equal(t, KindIdentifier, target.Kind)
	assert.Equal(t, "id", target.Name)
	require.Len(t, assigns[0].Children, 2)
	call := unit.Node(assigns[0].Children[1])
	assert.Equal(t, KindCall, call.Kind)
	assert.Equal(t, "getQueryParam", call.Name)
	assert.Len(t, call.Children, 2)

	// Second assignment: the concatenation with a literal and a reference.
	concat := unit.Node(assigns[1].Children[1])
	require.Equal(t, KindConcatenation, concat.Kind)
	require.Len(t, concat.Children, 2)
	assert.Equal(t, KindLiteral, unit.Node(concat.Children[0]).Kind)
	ref := unit.Node(concat.Children[1])
	assert.Equal(t, KindIdentifier, ref.Kind)
	assert.Equal(t, "id", ref.Name)

	calls := byKind(unit, KindCall)
	require.Len(t, calls, 2)
	assert.Equal(t, "executeQuery", calls[1].Name)
	assert.Equal(t, 4, calls[1].Span.StartLine)
}

func TestParseJavaScriptMemberAccessFlattens(t *testing.T) {
	unit := parseUnit(t, "app.js", "var id = req.query.id;\ndb.conn.executeQuery(id);\n")

	assigns := byKind(unit, KindAssignment)
	require.Len(t, assigns, 1)
	value := unit.Node(assigns[0].Children[1])
	assert.Equal(t, KindIdentifier, value.Kind)
	assert.Equal(t, "req.query.id", value.Name)

	calls := byKind(unit, KindCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "db.conn.executeQuery", calls[0].Name)
}

func TestParseJavaScriptFunctionShape(t *testing.T) {
	unit := parseUnit(t, "app.js", `
function lookup(conn, userId) {
  return conn.get(userId);
}
`)

	fns := byKind(unit, KindFunction)
	require.Len(t, fns, 1)
	assert.Equal(t, "lookup", fns[0].Name)

	// Parameters come first in the child layout.
	require.GreaterOrEqual(t, len(fns[0].Children), 2)
	p0 := unit.Node(fns[0].Children[0])
	p1 := unit.Node(fns[0].Children[1])
	assert.Equal(t, KindParameter, p0.Kind)
	assert.Equal(t, "conn", p0.Name)
	assert.Equal(t, KindParameter, p1.Kind)
	assert.Equal(t, "userId", p1.Name)

	rets := byKind(unit, KindReturn)
	require.Len(t, rets, 1)
	require.Len(t, rets[0].Children, 1)
	assert.Equal(t, KindCall, unit.Node(rets[0].Children[0]).Kind)
}

func TestParseJavaScriptTemplateString(t *testing.T) {
	unit := parseUnit(t, "app.js", "var q = `SELECT * FROM users WHERE id = ${id}`;\n")

	concats := byKind(unit, KindConcatenation)
	require.Len(t, concats, 1)

	var sawIdentifier bool
	for _, cid := range concats[0].Children {
		if unit.Node(cid).Kind == KindIdentifier {
			sawIdentifier = true
			assert.Equal(t, "id", unit.Node(cid).Name)
		}
	}
	assert.True(t, sawIdentifier, "interpolated identifier missing from template model")
}

func TestParsePythonAssignmentAndCall(t *testing.T) {
	unit := parseUnit(t, "app.py", `
uid = read_parameter(request, "id")
query = "SELECT * FROM users WHERE id = " + uid
execute_query(query)
`)

	assigns := byKind(unit, KindAssignment)
	require.Len(t, assigns, 2)
	target := unit.Node(assigns[0].Children[0])
	assert.Equal(t, "uid", target.Name)

	calls := byKind(unit, KindCall)
	require.Len(t, calls, 2)
	assert.Equal(t, "read_parameter", calls[0].Name)
	assert.Equal(t, "execute_query", calls[1].Name)

	concats := byKind(unit, KindConcatenation)
	require.Len(t, concats, 1)
}

func TestParsePythonFString(t *testing.T) {
	unit := parseUnit(t, "app.py", "query = f\"SELECT * FROM users WHERE id = {uid}\"\n")

	concats := byKind(unit, KindConcatenation)
	require.Len(t, concats, 1)

	var names []string
	for _, cid := range concats[0].Children {
		if n := unit.Node(cid); n.Kind == KindIdentifier {
			names = append(names, n.Name)
		}
	}
	assert.Equal(t, []string{"uid"}, names)
}

func TestParsePythonFunctionAndKeywordArguments(t *testing.T) {
	unit := parseUnit(t, "app.py", `
def handler(request, limit=10):
    run(query=request.args)
`)

	fns := byKind(unit, KindFunction)
	require.Len(t, fns, 1)
	assert.Equal(t, "handler", fns[0].Name)

	params := byKind(unit, KindParameter)
	require.Len(t, params, 2)
	assert.Equal(t, "request", params[0].Name)
	assert.Equal(t, "limit", params[1].Name)

	calls := byKind(unit, KindCall)
	require.Len(t, calls, 1)
	// The keyword argument is unwrapped to its value expression.
	require.Len(t, calls[0].Children, 1)
	assert.Equal(t, "request.args", unit.Node(calls[0].Children[0]).Name)
}

func TestParseUnitStructureIsConsistent(t *testing.T) {
	unit := parseUnit(t, "app.js", `
function f(a) { return a + 1; }
var x = f(req.query.id);
`)

	requireConsistent(t, unit)
}

// requireConsistent checks the invariants every modeled unit must satisfy:
// ids index the node table, parents precede children, and child lists point
// back at their parent.
func requireConsistent(t *testing.T, unit *Unit) {
	t.Helper()
	for i, n := range unit.Nodes {
		require.Equal(t, i, n.ID)
		if n.Parent >= 0 {
			require.Less(t, n.Parent, i, "parent must precede child")
		} else {
			require.Equal(t, -1, n.Parent)
		}
		for _, c := range n.Children {
			require.Greater(t, c, i)
			require.Less(t, c, len(unit.Nodes))
			require.Equal(t, i, unit.Nodes[c].Parent)
		}
	}
}

func TestParseErrorUnwrapsAsParseError(t *testing.T) {
	err := error(&ParseError{File: "x.js", Line: 3, Message: "syntax error"})
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "parse x.js:3: syntax error", err.Error())
}
