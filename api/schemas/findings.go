package schemas

import "time"

// -- Finding Schemas --

// Severity represents the severity level of a security finding. The values
// are lowercase to align with database ENUMs.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank returns a numeric weight for ordering, highest severity first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Confidence expresses how likely a reported taint path is a real
// vulnerability. Shorter, fully intra-procedural paths score higher; every
// inter-procedural (synthetic) hop demotes the band.
type Confidence string

// Constants for the confidence bands, strongest first.
const (
	ConfidenceCritical Confidence = "critical"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

// TraceStep is one hop of a reported taint path, from source to sink.
type TraceStep struct {
	Kind      string `json:"kind"`            // node kind (call, identifier, concatenation, ...)
	Name      string `json:"name,omitempty"`  // identifier or callee name, when the node has one
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Synthetic bool   `json:"synthetic,omitempty"` // true for inter-procedural parameter/return hops
}

// Finding encapsulates a single detected source-to-sink taint flow. It is
// immutable once created by the path evaluator; the aggregator only filters
// and orders findings, it never rewrites them.
type Finding struct {
	ID     string `json:"id"`
	ScanID string `json:"scan_id,omitempty"`

	RuleID    string `json:"rule_id"`
	RuleTitle string `json:"rule_title"`

	Severity   Severity   `json:"severity"`
	Confidence Confidence `json:"confidence"`

	// Location of the sink node, verbatim from the parser.
	File      string `json:"file"`
	StartLine int    `json:"line_start"`
	EndLine   int    `json:"line_end"`

	Message     string   `json:"message"`
	Remediation string   `json:"remediation,omitempty"`
	CWE         []string `json:"cwe,omitempty"`

	// Path is the full source-to-sink trace. It is never empty: the first
	// step is the matched source, the last step the sink.
	Path []TraceStep `json:"path"`

	ObservedAt time.Time `json:"observed_at"`
}

// PathSummary renders a compact one-line description of the taint path,
// suitable for terminal output and SARIF result messages.
func (f Finding) PathSummary() string {
	if len(f.Path) == 0 {
		return ""
	}
	out := ""
	for i, step := range f.Path {
		if i > 0 {
			out += " -> "
		}
		if step.Name != "" {
			out += step.Name
		} else {
			out += step.Kind
		}
	}
	return out
}
