package taint

import (
	"github.com/xkilldash9x/taintscope/api/schemas"
)

// Path is one unsanitized source-to-sink flow through a tagged graph. Nodes
// run in flow order: Nodes[0] carries the SOURCE tag, the last the SINK tag.
type Path struct {
	Nodes         []int
	SyntheticHops int
}

// Confidence maps a path's shape to a reporting band. Short intra-procedural
// paths start critical, longer ones high, anything beyond medium; every
// synthetic hop demotes one band with a floor of low.
func (p Path) Confidence() schemas.Confidence {
	hops := len(p.Nodes) - 1
	band := 1
	switch {
	case hops <= 3:
		band = 3
	case hops <= 6:
		band = 2
	}
	band -= p.SyntheticHops
	switch {
	case band >= 3:
		return schemas.ConfidenceCritical
	case band == 2:
		return schemas.ConfidenceHigh
	case band == 1:
		return schemas.ConfidenceMedium
	default:
		return schemas.ConfidenceLow
	}
}

// TraceBack searches backwards from the sink for the nearest node carrying
// the rule's SOURCE tag. Traversal never crosses a SANITIZER-tagged node,
// and the visited set makes it terminate on cyclic graphs (recursion). The
// boolean is false when no unsanitized source reaches the sink.
func (g *Graph) TraceBack(sink int, ruleID string) (Path, bool) {
	if g.Node(sink) == nil {
		return Path{}, false
	}

	visited := map[int]bool{sink: true}
	prev := make(map[int]int)
	queue := []int{sink}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, p := range g.Predecessors(cur) {
			if visited[p] {
				continue
			}
			visited[p] = true

			switch g.TagFor(p, ruleID) {
			case TagSanitizer:
				// Flow through this node is neutralized for the rule;
				// everything behind it is unreachable on this route.
				continue
			case TagSource:
				prev[p] = cur
				return g.reconstruct(p, sink, prev), true
			default:
				prev[p] = cur
				queue = append(queue, p)
			}
		}
	}
	return Path{}, false
}

// reconstruct follows the prev chain from the matched source to the sink and
// counts the synthetic hops along the way.
func (g *Graph) reconstruct(src, sink int, prev map[int]int) Path {
	var p Path
	for cur := src; ; cur = prev[cur] {
		p.Nodes = append(p.Nodes, cur)
		if g.Node(cur).Synthetic {
			p.SyntheticHops++
		}
		if cur == sink {
			break
		}
	}
	return p
}

// Evaluate runs TraceBack from every sink the rule tagged, in ascending node
// order. At most one path is reported per sink; two sources reaching the
// same sink yield a single finding.
func (g *Graph) Evaluate(ruleID string) []Path {
	var out []Path
	for _, sink := range g.Tagged(ruleID, TagSink) {
		if p, ok := g.TraceBack(sink, ruleID); ok {
			out = append(out, p)
		}
	}
	return out
}
