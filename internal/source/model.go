// Package source adapts a host-language parse tree into the uniform node
// model consumed by the taint graph builder. The builder depends on this
// shape only, never on tree-sitter types.
package source

import "fmt"

// Kind classifies a node in the uniform model. Only the value-flow kinds
// reach the taint graph; the structural kinds (Function, Block, Other) guide
// the builder's walk and are then discarded.
type Kind string

const (
	KindLiteral       Kind = "literal"
	KindIdentifier    Kind = "identifier"
	KindCall          Kind = "call"
	KindAssignment    Kind = "assignment"
	KindConcatenation Kind = "concatenation"
	KindParameter     Kind = "parameter"
	KindReturn        Kind = "return"

	// Structural kinds, internal to the adapter/builder contract.
	KindFunction Kind = "function"
	KindBlock    Kind = "block"
	KindOther    Kind = "other"
)

// Span is a source location, preserved verbatim from the underlying parser.
// Downstream components use it unchanged for reporting.
type Span struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
}

// Node is one point of program structure. Nodes are immutable after the
// adapter constructs them.
//
// Child layout conventions the builder relies on:
//   - Assignment: Children[0] is the target, Children[1:] the value operands.
//   - Call: Name is the (flattened) callee, Children are the arguments.
//   - Concatenation: Children are the operands.
//   - Return: zero or one child, the returned expression.
//   - Function: Parameter children first, then the body nodes.
type Node struct {
	ID       int
	Kind     Kind
	Name     string // identifier text, callee name, or function name
	Value    string // literal text for KindLiteral
	Span     Span
	Parent   int // -1 for the root
	Children []int
}

// Unit is one independently parsed compilation unit: a flat, pre-order
// sequence of nodes. Node IDs index directly into Nodes.
type Unit struct {
	File  string
	Nodes []Node
}

// Node returns the node with the given id, or nil when out of range.
func (u *Unit) Node(id int) *Node {
	if id < 0 || id >= len(u.Nodes) {
		return nil
	}
	return &u.Nodes[id]
}

// Root returns the top node of the unit, or nil for an empty unit.
func (u *Unit) Root() *Node {
	if len(u.Nodes) == 0 {
		return nil
	}
	return &u.Nodes[0]
}

// add appends a node and returns its id. Used by the adapter and by test
// fixtures that construct units by hand.
func (u *Unit) add(kind Kind, name, value string, span Span, parent int) int {
	id := len(u.Nodes)
	u.Nodes = append(u.Nodes, Node{
		ID:     id,
		Kind:   kind,
		Name:   name,
		Value:  value,
		Span:   span,
		Parent: parent,
	})
	if parent >= 0 && parent < id {
		u.Nodes[parent].Children = append(u.Nodes[parent].Children, id)
	}
	return id
}

// ParseError reports a unit that the host parser could not model. The caller
// may skip the file and continue the scan; a ParseError is never fatal at
// the scan-run level.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s:%d: %s", e.File, e.Line, e.Message)
}
