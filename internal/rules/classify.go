package rules

import (
	"strings"

	"github.com/xkilldash9x/taintscope/internal/source"
	"github.com/xkilldash9x/taintscope/internal/taint"
)

// matchName reports whether a node name matches one pattern. Three forms:
//
//   - exact: "executeQuery" matches "executeQuery"
//   - trailing segment, for undotted patterns: "executeQuery" matches
//     "db.conn.executeQuery"
//   - prefix, for dotted patterns: "req.query" matches "req.query.id"
func matchName(name, pattern string) bool {
	if name == pattern {
		return true
	}
	if strings.IndexByte(pattern, '.') < 0 {
		return strings.HasSuffix(name, "."+pattern)
	}
	return strings.HasPrefix(name, pattern+".")
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if matchName(name, p) {
			return true
		}
	}
	return false
}

// Classify tags the graph's nodes under every rule in the set. Call nodes
// are matched against all three pattern lists. Identifier nodes are matched
// against sinks and sources only: that covers assignment-target sinks like
// el.innerHTML and direct reads like req.query.id, while sanitizing remains
// a call-shaped act. When a name matches more than one list of the same
// rule, sanitizer wins over sink over source, so a mislabeled catalogue
// fails toward silence rather than noise.
func Classify(g *taint.Graph, rs *RuleSet) error {
	for _, n := range g.Nodes() {
		if n.Name == "" {
			continue
		}
		switch n.Kind {
		case source.KindCall:
			for _, r := range rs.Rules {
				tag, ok := classifyName(n.Name, r, true)
				if !ok {
					continue
				}
				if err := g.SetTag(n.ID, r.ID, tag); err != nil {
					return err
				}
			}
		case source.KindIdentifier:
			for _, r := range rs.Rules {
				tag, ok := classifyName(n.Name, r, false)
				if !ok {
					continue
				}
				if err := g.SetTag(n.ID, r.ID, tag); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func classifyName(name string, r Rule, isCall bool) (taint.Tag, bool) {
	switch {
	case isCall && matchAny(name, r.Sanitizers):
		return taint.TagSanitizer, true
	case matchAny(name, r.Sinks):
		return taint.TagSink, true
	case matchAny(name, r.Sources):
		return taint.TagSource, true
	default:
		return taint.TagPlain, false
	}
}
