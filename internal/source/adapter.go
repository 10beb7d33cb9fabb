package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"
)

// Adapter wraps the tree-sitter parser behind the uniform node model. One
// adapter is safe for concurrent use; each Parse call creates its own
// tree-sitter parser instance, which is not shareable.
type Adapter struct {
	logger *zap.Logger
}

// NewAdapter creates an adapter using the built-in language registry.
func NewAdapter(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger.Named("source_adapter")}
}

// Supported reports whether the adapter can model the given file.
func (a *Adapter) Supported(file string) bool {
	_, ok := languageFor(filepath.Ext(file))
	return ok
}

// Parse models one file. On a syntax error the returned error is a
// *ParseError carrying the file and the first offending line; the caller is
// expected to skip the unit and continue.
func (a *Adapter) Parse(ctx context.Context, file string, src []byte) (*Unit, error) {
	lang, ok := languageFor(filepath.Ext(file))
	if !ok {
		return nil, &ParseError{File: file, Message: fmt.Sprintf("unsupported file extension %q", filepath.Ext(file))}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.language)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, &ParseError{File: file, Message: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		return nil, &ParseError{File: file, Line: line, Message: "syntax error"}
	}

	unit := &Unit{File: file}
	c := &converter{unit: unit, src: src, dialect: lang}
	c.convert(root, -1)

	a.logger.Debug("Modeled unit",
		zap.String("file", file),
		zap.String("language", lang.name),
		zap.Int("nodes", len(unit.Nodes)))
	return unit, nil
}

// firstErrorLine locates the first ERROR or missing node, for the ParseError.
func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && child.HasError() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPoint().Row) + 1
}

// converter maps one tree-sitter CST into the uniform model.
type converter struct {
	unit    *Unit
	src     []byte
	dialect *dialect
}

func (c *converter) span(n *sitter.Node) Span {
	return Span{
		File:      c.unit.File,
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		EndCol:    int(n.EndPoint().Column) + 1,
	}
}

func (c *converter) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

// convert emits zero or more uniform nodes for the given CST node under
// parent. Wrapper nodes (expression statements, parentheses, declaration
// lists) emit nothing themselves and pass their children through.
func (c *converter) convert(n *sitter.Node, parent int) {
	if n == nil || n.IsNull() {
		return
	}

	switch {
	case c.dialect.isBlock(n.Type()):
		id := c.unit.add(KindBlock, "", "", c.span(n), parent)
		c.convertNamedChildren(n, id)

	case c.dialect.isFunction(n.Type()):
		c.convertFunction(n, parent)

	case c.dialect.isPassthrough(n.Type()):
		c.convertNamedChildren(n, parent)

	case c.dialect.isDeclarationList(n.Type()):
		// var/let/const lists: each declarator becomes its own assignment.
		c.convertNamedChildren(n, parent)

	case c.dialect.isAssignment(n.Type()):
		c.convertAssignment(n, parent)

	case c.dialect.isCall(n.Type()):
		c.convertCall(n, parent)

	case c.dialect.isBinary(n.Type()):
		c.convertBinary(n, parent)

	case c.dialect.isTemplate(n, c.src):
		c.convertTemplate(n, parent)

	case c.dialect.isReturn(n.Type()):
		id := c.unit.add(KindReturn, "", "", c.span(n), parent)
		if expr := firstNamedChild(n); expr != nil {
			c.convert(expr, id)
		}

	case c.dialect.isReference(n.Type()):
		name := c.dialect.flatten(n, c.src)
		if name == "" {
			name = c.content(n)
		}
		c.unit.add(KindIdentifier, name, "", c.span(n), parent)

	case c.dialect.isLiteral(n.Type()):
		c.unit.add(KindLiteral, "", c.content(n), c.span(n), parent)

	default:
		if n.NamedChildCount() == 0 {
			return
		}
		id := c.unit.add(KindOther, n.Type(), "", c.span(n), parent)
		c.convertNamedChildren(n, id)
	}
}

func (c *converter) convertNamedChildren(n *sitter.Node, parent int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.convert(n.NamedChild(i), parent)
	}
}

func (c *converter) convertFunction(n *sitter.Node, parent int) {
	name := c.content(n.ChildByFieldName("name"))
	id := c.unit.add(KindFunction, name, "", c.span(n), parent)

	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = n.ChildByFieldName("formal_parameters")
	}
	if params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			pname := c.dialect.parameterName(p, c.src)
			if pname == "" {
				continue
			}
			c.unit.add(KindParameter, pname, "", c.span(p), id)
		}
	} else if single := n.ChildByFieldName("parameter"); single != nil {
		// Arrow functions with a bare parameter: x => x.
		c.unit.add(KindParameter, c.content(single), "", c.span(single), id)
	}

	if body := n.ChildByFieldName("body"); body != nil {
		c.convert(body, id)
	}
}

func (c *converter) convertAssignment(n *sitter.Node, parent int) {
	target := n.ChildByFieldName(c.dialect.assignTargetField)
	value := n.ChildByFieldName(c.dialect.assignValueField)
	if target == nil {
		// Declarators (var x = ...) name their fields differently.
		target = n.ChildByFieldName("name")
		value = n.ChildByFieldName("value")
	}
	if target == nil {
		c.convertNamedChildren(n, parent)
		return
	}

	id := c.unit.add(KindAssignment, "", "", c.span(n), parent)

	tname := c.dialect.flatten(target, c.src)
	if tname == "" {
		tname = c.content(target)
	}
	c.unit.add(KindIdentifier, tname, "", c.span(target), id)

	if value != nil {
		c.convert(value, id)
	}
}

func (c *converter) convertCall(n *sitter.Node, parent int) {
	callee := n.ChildByFieldName(c.dialect.calleeField)
	if callee == nil {
		// new_expression keeps its callee under "constructor", not "function".
		callee = n.ChildByFieldName("constructor")
	}
	name := c.dialect.flatten(callee, c.src)
	if name == "" {
		name = c.content(callee)
	}

	id := c.unit.add(KindCall, name, "", c.span(n), parent)

	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			// Keyword arguments contribute their value expression.
			if inner := c.dialect.unwrapArgument(arg); inner != nil {
				arg = inner
			}
			c.convert(arg, id)
		}
	}
}

func (c *converter) convertBinary(n *sitter.Node, parent int) {
	op := ""
	if opNode := n.ChildByFieldName("operator"); opNode != nil {
		op = c.content(opNode)
	} else {
		// Some grammars expose the operator as an anonymous child only.
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child != nil && !child.IsNamed() {
				op = c.content(child)
				break
			}
		}
	}

	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")

	if strings.TrimSpace(op) == "+" {
		id := c.unit.add(KindConcatenation, "", "", c.span(n), parent)
		c.convert(left, id)
		c.convert(right, id)
		return
	}

	id := c.unit.add(KindOther, n.Type(), "", c.span(n), parent)
	c.convert(left, id)
	c.convert(right, id)
}

// convertTemplate models template strings and f-strings as concatenations of
// their fragments, so taint stays disjunctive across interpolations.
func (c *converter) convertTemplate(n *sitter.Node, parent int) {
	id := c.unit.add(KindConcatenation, "", "", c.span(n), parent)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if c.dialect.isInterpolation(child.Type()) {
			if expr := firstNamedChild(child); expr != nil {
				c.convert(expr, id)
			}
			continue
		}
		c.unit.add(KindLiteral, "", c.content(child), c.span(child), id)
	}
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}
