package source

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// dialect describes how one tree-sitter grammar maps onto the uniform model.
// The node-type sets are small enough that plain maps beat anything fancier.
type dialect struct {
	name     string
	language *sitter.Language

	blocks          map[string]bool
	functions       map[string]bool
	passthrough     map[string]bool
	declarationList map[string]bool
	assignments     map[string]bool
	calls           map[string]bool
	binaries        map[string]bool
	templates       map[string]bool
	returns         map[string]bool
	references      map[string]bool
	literals        map[string]bool
	interpolations  map[string]bool

	assignTargetField string
	assignValueField  string
	calleeField       string
}

func (d *dialect) isBlock(t string) bool           { return d.blocks[t] }
func (d *dialect) isFunction(t string) bool        { return d.functions[t] }
func (d *dialect) isPassthrough(t string) bool     { return d.passthrough[t] }
func (d *dialect) isDeclarationList(t string) bool { return d.declarationList[t] }
func (d *dialect) isAssignment(t string) bool      { return d.assignments[t] }
func (d *dialect) isCall(t string) bool            { return d.calls[t] }
func (d *dialect) isBinary(t string) bool          { return d.binaries[t] }
func (d *dialect) isReturn(t string) bool          { return d.returns[t] }
func (d *dialect) isReference(t string) bool       { return d.references[t] }
func (d *dialect) isLiteral(t string) bool         { return d.literals[t] }
func (d *dialect) isInterpolation(t string) bool   { return d.interpolations[t] }

// isTemplate reports template strings, and Python strings that carry
// interpolation children (f-strings). Plain strings stay literals.
func (d *dialect) isTemplate(n *sitter.Node, src []byte) bool {
	if d.templates[n.Type()] {
		return true
	}
	if n.Type() == "string" && n.NamedChildCount() > 0 {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if d.interpolations[n.NamedChild(i).Type()] {
				return true
			}
		}
	}
	return false
}

// flatten collapses a member/attribute access chain into a dotted path:
// req.query.id -> "req.query.id". Returns "" when the chain contains
// anything but plain identifiers.
func (d *dialect) flatten(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "property_identifier", "shorthand_property_identifier", "this":
		return n.Content(src)
	case "member_expression", "attribute":
		objField, propField := "object", "property"
		if n.Type() == "attribute" {
			objField, propField = "object", "attribute"
		}
		obj := d.flatten(n.ChildByFieldName(objField), src)
		prop := d.flatten(n.ChildByFieldName(propField), src)
		if obj == "" || prop == "" {
			return ""
		}
		return obj + "." + prop
	case "subscript_expression", "subscript":
		// obj["prop"] flattens when the index is a plain string literal.
		obj := d.flatten(n.ChildByFieldName("object"), src)
		if obj == "" {
			obj = d.flatten(n.ChildByFieldName("value"), src)
		}
		idx := n.ChildByFieldName("index")
		if idx == nil {
			idx = n.ChildByFieldName("subscript")
		}
		if obj == "" || idx == nil {
			return ""
		}
		if idx.Type() == "string" {
			return obj + "." + strings.Trim(idx.Content(src), "\"'`")
		}
		return obj
	default:
		return ""
	}
}

// parameterName extracts the binding name from a parameter pattern; complex
// destructuring patterns are skipped, matching the builder's precision level.
func (d *dialect) parameterName(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier":
		return n.Content(src)
	case "typed_parameter", "default_parameter", "typed_default_parameter", "assignment_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "identifier" {
				return child.Content(src)
			}
		}
	case "rest_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		if inner := firstNamedChild(n); inner != nil && inner.Type() == "identifier" {
			return inner.Content(src)
		}
	}
	return ""
}

// unwrapArgument returns the value expression of wrapper argument nodes
// (Python keyword arguments), or nil when the argument is already a value.
func (d *dialect) unwrapArgument(n *sitter.Node) *sitter.Node {
	if n != nil && n.Type() == "keyword_argument" {
		return n.ChildByFieldName("value")
	}
	return nil
}

var javascriptDialect = &dialect{
	name:     "javascript",
	language: javascript.GetLanguage(),
	blocks: map[string]bool{
		"program": true, "statement_block": true, "class_body": true,
	},
	functions: map[string]bool{
		"function_declaration": true, "function": true, "arrow_function": true,
		"generator_function_declaration": true, "generator_function": true,
		"method_definition": true,
	},
	passthrough: map[string]bool{
		"expression_statement": true, "parenthesized_expression": true,
		"sequence_expression": true, "await_expression": true,
	},
	declarationList: map[string]bool{
		"variable_declaration": true, "lexical_declaration": true,
	},
	assignments: map[string]bool{
		"variable_declarator": true, "assignment_expression": true,
		"augmented_assignment_expression": true,
	},
	calls: map[string]bool{
		"call_expression": true, "new_expression": true,
	},
	binaries:  map[string]bool{"binary_expression": true},
	templates: map[string]bool{"template_string": true},
	returns:   map[string]bool{"return_statement": true},
	references: map[string]bool{
		"identifier": true, "member_expression": true, "subscript_expression": true,
		"property_identifier": true, "shorthand_property_identifier": true, "this": true,
	},
	literals: map[string]bool{
		"string": true, "number": true, "regex": true,
		"true": true, "false": true, "null": true, "undefined": true,
	},
	interpolations:    map[string]bool{"template_substitution": true},
	assignTargetField: "left",
	assignValueField:  "right",
	calleeField:       "function",
}

var pythonDialect = &dialect{
	name:     "python",
	language: python.GetLanguage(),
	blocks: map[string]bool{
		"module": true, "block": true, "class_definition": true,
	},
	functions: map[string]bool{
		"function_definition": true, "lambda": true,
	},
	passthrough: map[string]bool{
		"expression_statement": true, "parenthesized_expression": true,
		"await": true,
	},
	declarationList: map[string]bool{},
	assignments: map[string]bool{
		"assignment": true, "augmented_assignment": true,
	},
	calls:     map[string]bool{"call": true},
	binaries:  map[string]bool{"binary_operator": true},
	templates: map[string]bool{},
	returns:   map[string]bool{"return_statement": true},
	references: map[string]bool{
		"identifier": true, "attribute": true, "subscript": true,
	},
	literals: map[string]bool{
		"string": true, "integer": true, "float": true,
		"true": true, "false": true, "none": true,
	},
	interpolations:    map[string]bool{"interpolation": true},
	assignTargetField: "left",
	assignValueField:  "right",
	calleeField:       "function",
}

// extensions maps file extensions to their dialect. JavaScript variants all
// go through the same grammar; TypeScript is not modeled.
var extensions = map[string]*dialect{
	".js":  javascriptDialect,
	".jsx": javascriptDialect,
	".mjs": javascriptDialect,
	".cjs": javascriptDialect,
	".py":  pythonDialect,
}

func languageFor(ext string) (*dialect, bool) {
	d, ok := extensions[strings.ToLower(ext)]
	return d, ok
}

// SupportedExtensions lists the file extensions the adapter can model, for
// the target loader's walk filter.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	return out
}
