package schemas

import "time"

// UnitError records a unit that could not be modeled. Per-unit failures are
// isolated: they are reported alongside findings from other units and never
// abort the scan.
type UnitError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// Summary aggregates scan-level counters for the final report.
type Summary struct {
	UnitsScanned int                `json:"units_scanned"`
	UnitsFailed  int                `json:"units_failed"`
	BySeverity   map[Severity]int   `json:"by_severity"`
	ByRule       map[string]int     `json:"by_rule"`
}

// Report is the envelope handed to reporters once a scan completes. Findings
// arrive already deduplicated and ordered by the aggregator.
type Report struct {
	ScanID      string      `json:"scan_id"`
	Tool        string      `json:"tool"`
	Version     string      `json:"version"`
	GeneratedAt time.Time   `json:"generated_at"`
	Findings    []Finding   `json:"findings"`
	Errors      []UnitError `json:"errors,omitempty"`
	Summary     Summary     `json:"summary"`
}
