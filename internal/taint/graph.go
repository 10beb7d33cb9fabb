// Package taint builds and queries per-unit value-flow graphs. A graph is
// constructed once by the Builder, tagged by the rule engine, then only read;
// graphs for independent units are never merged.
package taint

import (
	"errors"
	"fmt"
	"sort"

	"github.com/xkilldash9x/taintscope/internal/source"
)

// Tag marks the role a node plays for one specific rule.
type Tag string

const (
	TagSource    Tag = "SOURCE"
	TagSink      Tag = "SINK"
	TagSanitizer Tag = "SANITIZER"
	TagPlain     Tag = "PLAIN"
)

// Edge creation reasons, kept on the edge for debugging and reporting.
const (
	ReasonAssign   = "assign"
	ReasonUse      = "use"
	ReasonArgument = "argument"
	ReasonConcat   = "concat"
	ReasonParam    = "param"
	ReasonReturn   = "return"
)

// ErrDanglingEdge signals a graph invariant violation: an edge referencing a
// node id outside the graph. This is a defect in the builder, not in the
// scanned code.
var ErrDanglingEdge = errors.New("taint: edge endpoint not present in graph")

// Node is one point in the value-flow graph. Synthetic nodes model
// inter-procedural plumbing (function return collectors and parameter
// bindings) and demote the confidence of any path crossing them.
type Node struct {
	ID        int
	Kind      source.Kind
	Name      string
	Span      source.Span
	Synthetic bool
}

// Edge is a directed flows-to relation: a value computed at From may reach
// To. Duplicate (From, To) pairs are permitted at creation time and collapsed
// by Predecessors at query time.
type Edge struct {
	From   int
	To     int
	Reason string
}

// Graph is an immutable-after-build value flow graph for a single unit.
type Graph struct {
	file  string
	nodes []Node
	edges []Edge
	in    map[int][]int

	// tags maps node id -> rule id -> tag. A node carries at most one tag
	// per rule; untagged means PLAIN.
	tags map[int]map[string]Tag
}

// NewGraph creates an empty graph for the named unit.
func NewGraph(file string) *Graph {
	return &Graph{
		file: file,
		in:   make(map[int][]int),
		tags: make(map[int]map[string]Tag),
	}
}

// File returns the unit this graph was built from.
func (g *Graph) File() string { return g.file }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// AddNode appends a node and returns its id.
func (g *Graph) AddNode(kind source.Kind, name string, span source.Span, synthetic bool) int {
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		ID:        id,
		Kind:      kind,
		Name:      name,
		Span:      span,
		Synthetic: synthetic,
	})
	return id
}

// AddEdge appends a flows-to edge. Edge creation is append-only; there is no
// retraction. Endpoints must already exist.
func (g *Graph) AddEdge(from, to int, reason string) error {
	if from < 0 || from >= len(g.nodes) || to < 0 || to >= len(g.nodes) {
		return fmt.Errorf("%w: %d -> %d (have %d nodes)", ErrDanglingEdge, from, to, len(g.nodes))
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Reason: reason})
	g.in[to] = append(g.in[to], from)
	return nil
}

// Node returns the node with the given id, or nil when out of range.
func (g *Graph) Node(id int) *Node {
	if id < 0 || id >= len(g.nodes) {
		return nil
	}
	return &g.nodes[id]
}

// Nodes returns the node table in id order. Callers must not mutate it.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the raw edge list, duplicates included.
func (g *Graph) Edges() []Edge { return g.edges }

// Predecessors returns the distinct nodes flowing into id, ascending. The
// deduplication happens here rather than at edge creation so the builder's
// single pass stays append-only.
func (g *Graph) Predecessors(id int) []int {
	raw := g.in[id]
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(raw))
	out := make([]int, 0, len(raw))
	for _, from := range raw {
		if !seen[from] {
			seen[from] = true
			out = append(out, from)
		}
	}
	sort.Ints(out)
	return out
}

// SetTag attaches a tag to a node for one rule. The rule engine calls this
// once per (node, rule) pair after the structural graph is complete.
func (g *Graph) SetTag(id int, ruleID string, tag Tag) error {
	if id < 0 || id >= len(g.nodes) {
		return fmt.Errorf("%w: tag %s/%s on node %d", ErrDanglingEdge, ruleID, tag, id)
	}
	m := g.tags[id]
	if m == nil {
		m = make(map[string]Tag)
		g.tags[id] = m
	}
	m[ruleID] = tag
	return nil
}

// TagFor returns the node's tag under the given rule, defaulting to PLAIN.
func (g *Graph) TagFor(id int, ruleID string) Tag {
	if m, ok := g.tags[id]; ok {
		if t, ok := m[ruleID]; ok {
			return t
		}
	}
	return TagPlain
}

// Tagged returns all node ids carrying the given tag for the rule, in
// ascending order so scans stay deterministic.
func (g *Graph) Tagged(ruleID string, tag Tag) []int {
	var out []int
	for id, m := range g.tags {
		if m[ruleID] == tag {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
