package taint

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/internal/source"
)

// Builder constructs a value-flow graph from one modeled unit. A builder is
// stateless and safe for concurrent use; all per-unit state lives on the
// walk struct created inside Build.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("taint_builder")}
}

// Build walks the unit once, emitting graph nodes for every value-producing
// construct and flows-to edges between them, then links call sites to the
// functions they resolve to. The walk is single-pass and append-only; an
// AddEdge failure here means the builder itself is broken.
func (b *Builder) Build(unit *source.Unit) (*Graph, error) {
	w := &walk{
		unit:   unit,
		graph:  NewGraph(unit.File),
		scopes: []map[string]int{make(map[string]int)},
		funcs:  make(map[string]*functionInfo),
	}

	if root := unit.Root(); root != nil {
		if _, err := w.node(root); err != nil {
			return nil, err
		}
	}
	if err := w.linkCalls(); err != nil {
		return nil, err
	}

	b.logger.Debug("Built taint graph",
		zap.String("file", unit.File),
		zap.Int("nodes", w.graph.Len()),
		zap.Int("edges", len(w.graph.Edges())))
	return w.graph, nil
}

// functionInfo carries the graph-side anchors of one function: its parameter
// nodes in declaration order and the collector every return statement feeds.
type functionInfo struct {
	params []int
	ret    int
}

// callSite defers inter-procedural wiring until every function in the unit
// has been seen, so calls before the callee's declaration still resolve.
type callSite struct {
	graphID int
	callee  string
	args    []int
}

type walk struct {
	unit  *source.Unit
	graph *Graph

	scopes  []map[string]int
	funcs   map[string]*functionInfo
	calls   []callSite
	retDest []int // stack of return collectors for nested functions
}

func (w *walk) push() { w.scopes = append(w.scopes, make(map[string]int)) }
func (w *walk) pop()  { w.scopes = w.scopes[:len(w.scopes)-1] }

// bind records name -> graph node in the innermost scope. Rebinding the same
// name shadows the previous definition from this point on, which is what
// makes assignment kill-free but still flow-sensitive in straight-line code.
func (w *walk) bind(name string, id int) {
	w.scopes[len(w.scopes)-1][name] = id
}

// lookup resolves a name against the scope stack, innermost first. Dotted
// names fall back to their base object, so a read of req.query.id links to a
// binding of req.
func (w *walk) lookup(name string) (int, bool) {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if id, ok := w.scopes[i][name]; ok {
			return id, true
		}
	}
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		base := name[:dot]
		for i := len(w.scopes) - 1; i >= 0; i-- {
			if id, ok := w.scopes[i][base]; ok {
				return id, true
			}
		}
	}
	return 0, false
}

// node emits graph nodes for one uniform node and returns the graph ids of
// the values the subtree produces. Structural nodes produce no values.
func (w *walk) node(n *source.Node) ([]int, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case source.KindBlock:
		w.push()
		err := w.children(n)
		w.pop()
		return nil, err

	case source.KindFunction:
		return nil, w.function(n, n.Name)

	case source.KindAssignment:
		return w.assignment(n)

	case source.KindIdentifier:
		return w.identifier(n)

	case source.KindLiteral:
		id := w.graph.AddNode(source.KindLiteral, n.Value, n.Span, false)
		return []int{id}, nil

	case source.KindCall:
		return w.call(n)

	case source.KindConcatenation:
		return w.concatenation(n)

	case source.KindReturn:
		return nil, w.returnStatement(n)

	case source.KindParameter:
		// Parameters are bound by the enclosing function walk.
		return nil, nil

	default:
		// Structural wrappers contribute the values of their children, so
		// taint survives constructs the model does not understand.
		var ops []int
		for _, childID := range n.Children {
			child := w.unit.Node(childID)
			vals, err := w.node(child)
			if err != nil {
				return nil, err
			}
			ops = append(ops, vals...)
		}
		return ops, nil
	}
}

func (w *walk) children(n *source.Node) error {
	for _, childID := range n.Children {
		if _, err := w.node(w.unit.Node(childID)); err != nil {
			return err
		}
	}
	return nil
}

// function opens a scope, binds the parameters, and registers the function
// under name so linkCalls can wire its call sites afterwards. The return
// collector is synthetic: it has no single source location of its own.
func (w *walk) function(n *source.Node, name string) error {
	w.push()
	defer w.pop()

	info := &functionInfo{
		ret: w.graph.AddNode(source.KindReturn, name, n.Span, true),
	}
	for _, childID := range n.Children {
		child := w.unit.Node(childID)
		if child == nil || child.Kind != source.KindParameter {
			continue
		}
		pid := w.graph.AddNode(source.KindParameter, child.Name, child.Span, true)
		w.bind(child.Name, pid)
		info.params = append(info.params, pid)
	}
	if name != "" {
		w.funcs[name] = info
	}

	w.retDest = append(w.retDest, info.ret)
	defer func() { w.retDest = w.retDest[:len(w.retDest)-1] }()

	for _, childID := range n.Children {
		child := w.unit.Node(childID)
		if child == nil || child.Kind == source.KindParameter {
			continue
		}
		if _, err := w.node(child); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) assignment(n *source.Node) ([]int, error) {
	if len(n.Children) == 0 {
		return nil, nil
	}
	target := w.unit.Node(n.Children[0])
	if target == nil {
		return nil, nil
	}

	var ops []int
	for _, childID := range n.Children[1:] {
		child := w.unit.Node(childID)
		if child == nil {
			continue
		}
		// A function expression bound to a name becomes callable under it.
		if child.Kind == source.KindFunction {
			fname := child.Name
			if fname == "" {
				fname = target.Name
			}
			if err := w.function(child, fname); err != nil {
				return nil, err
			}
			continue
		}
		vals, err := w.node(child)
		if err != nil {
			return nil, err
		}
		ops = append(ops, vals...)
	}

	def := w.graph.AddNode(source.KindIdentifier, target.Name, target.Span, false)
	for _, op := range ops {
		if err := w.graph.AddEdge(op, def, ReasonAssign); err != nil {
			return nil, err
		}
	}
	w.bind(target.Name, def)
	return []int{def}, nil
}

func (w *walk) identifier(n *source.Node) ([]int, error) {
	occ := w.graph.AddNode(source.KindIdentifier, n.Name, n.Span, false)
	if def, ok := w.lookup(n.Name); ok {
		if err := w.graph.AddEdge(def, occ, ReasonUse); err != nil {
			return nil, err
		}
	}
	return []int{occ}, nil
}

func (w *walk) call(n *source.Node) ([]int, error) {
	id := w.graph.AddNode(source.KindCall, n.Name, n.Span, false)
	// A method call produces a value derived from its receiver: id.toString()
	// carries whatever id carries. When the dotted callee's base object
	// resolves in scope, the receiver flows into the call.
	if strings.IndexByte(n.Name, '.') > 0 {
		if recv, ok := w.lookup(n.Name); ok {
			if err := w.graph.AddEdge(recv, id, ReasonArgument); err != nil {
				return nil, err
			}
		}
	}
	var args []int
	for _, childID := range n.Children {
		vals, err := w.node(w.unit.Node(childID))
		if err != nil {
			return nil, err
		}
		args = append(args, vals...)
	}
	// Argument edges are deferred to linkCalls: a unit-local callee gets the
	// precise parameter/return route, everything else the direct
	// argument-to-value over-approximation.
	w.calls = append(w.calls, callSite{graphID: id, callee: n.Name, args: args})
	return []int{id}, nil
}

func (w *walk) concatenation(n *source.Node) ([]int, error) {
	id := w.graph.AddNode(source.KindConcatenation, "", n.Span, false)
	for _, childID := range n.Children {
		vals, err := w.node(w.unit.Node(childID))
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if err := w.graph.AddEdge(v, id, ReasonConcat); err != nil {
				return nil, err
			}
		}
	}
	return []int{id}, nil
}

func (w *walk) returnStatement(n *source.Node) error {
	if len(w.retDest) == 0 || len(n.Children) == 0 {
		// A top-level return, or a bare one; nothing flows anywhere.
		return w.children(n)
	}
	dest := w.retDest[len(w.retDest)-1]
	for _, childID := range n.Children {
		vals, err := w.node(w.unit.Node(childID))
		if err != nil {
			return err
		}
		for _, v := range vals {
			if err := w.graph.AddEdge(v, dest, ReasonReturn); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkCalls wires every recorded call site once all functions in the unit
// have been seen, so calls ahead of the callee's declaration still resolve.
// A unit-local callee gets precise wiring: argument i flows into parameter i
// and the return collector flows into the call's value. An external callee
// is assumed to possibly return any of its arguments, so they flow straight
// into the call node. Recursive calls produce cycles; traversal handles
// those with its visited set.
func (w *walk) linkCalls() error {
	for _, cs := range w.calls {
		info, resolved := w.funcs[cs.callee]
		if !resolved {
			for _, arg := range cs.args {
				if err := w.graph.AddEdge(arg, cs.graphID, ReasonArgument); err != nil {
					return err
				}
			}
			continue
		}
		for i, arg := range cs.args {
			if i >= len(info.params) {
				break
			}
			if err := w.graph.AddEdge(arg, info.params[i], ReasonParam); err != nil {
				return err
			}
		}
		if err := w.graph.AddEdge(info.ret, cs.graphID, ReasonReturn); err != nil {
			return err
		}
	}
	return nil
}
