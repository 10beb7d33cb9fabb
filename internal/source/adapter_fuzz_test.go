//go:build go1.18
// +build go1.18

package source

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

// Fuzz_Parse throws arbitrary bytes at both grammars. Whatever the input,
// Parse must either fail with a ParseError or return a structurally
// consistent unit; it must never panic or emit dangling node references.
func Fuzz_Parse(f *testing.F) {
	f.Add("app.js", []byte("var id = getQueryParam(req, \"id\");\nexecuteQuery(id);\n"))
	f.Add("app.py", []byte("uid = read_parameter(request)\nexecute_query(f\"id={uid}\")\n"))
	f.Add("app.js", []byte("function f(x) { return `${x}` + f(x); }"))
	f.Add("app.py", []byte("def f(x):\n    return f(x + \"a\")\n"))
	f.Add("app.js", []byte("\x00\xff{{{"))

	a := NewAdapter(zap.NewNop())
	f.Fuzz(func(t *testing.T, file string, src []byte) {
		switch file {
		case "app.js", "app.py":
		default:
			file = "app.js"
		}

		unit, err := a.Parse(context.Background(), file, src)
		if err != nil {
			if _, ok := err.(*ParseError); !ok {
				t.Fatalf("non-ParseError failure: %v", err)
			}
			return
		}

		for i, n := range unit.Nodes {
			if n.ID != i {
				t.Fatalf("node %d has id %d", i, n.ID)
			}
			if n.Parent >= i {
				t.Fatalf("node %d has parent %d", i, n.Parent)
			}
			for _, c := range n.Children {
				if c <= i || c >= len(unit.Nodes) {
					t.Fatalf("node %d has dangling child %d", i, c)
				}
			}
		}
	})
}
