package reporting

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

// textReporter renders the report for humans at a terminal.
type textReporter struct {
	path   string
	logger *zap.Logger
}

func (r *textReporter) Format() string { return "text" }

func (r *textReporter) Write(report schemas.Report) error {
	out, err := openOutput(r.path)
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Fprintf(out, "%s %s / scan %s\n", report.Tool, report.Version, report.ScanID)
	fmt.Fprintf(out, "scanned %d unit(s), %d failed\n\n",
		report.Summary.UnitsScanned, report.Summary.UnitsFailed)

	if len(report.Findings) == 0 {
		fmt.Fprintln(out, "No findings.")
	}

	for i, f := range report.Findings {
		fmt.Fprintf(out, "[%d] %s %s (%s confidence) %s\n",
			i+1, strings.ToUpper(string(f.Severity)), f.RuleID, f.Confidence, f.RuleTitle)
		fmt.Fprintf(out, "    %s:%d\n", f.File, f.StartLine)
		fmt.Fprintf(out, "    %s\n", f.Message)
		if summary := f.PathSummary(); summary != "" {
			fmt.Fprintf(out, "    flow: %s\n", summary)
		}
		if f.Remediation != "" {
			fmt.Fprintf(out, "    fix: %s\n", f.Remediation)
		}
		fmt.Fprintln(out)
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(out, "%d unit(s) could not be scanned:\n", len(report.Errors))
		for _, e := range report.Errors {
			if e.Line > 0 {
				fmt.Fprintf(out, "  %s:%d: %s\n", e.File, e.Line, e.Message)
			} else {
				fmt.Fprintf(out, "  %s: %s\n", e.File, e.Message)
			}
		}
		fmt.Fprintln(out)
	}

	writeSeveritySummary(out, report.Summary)
	return nil
}

func writeSeveritySummary(out io.Writer, s schemas.Summary) {
	order := []schemas.Severity{
		schemas.SeverityCritical, schemas.SeverityHigh,
		schemas.SeverityMedium, schemas.SeverityLow, schemas.SeverityInfo,
	}
	var parts []string
	for _, sev := range order {
		if n := s.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	if len(parts) == 0 {
		fmt.Fprintln(out, "summary: clean")
		return
	}
	fmt.Fprintf(out, "summary: %s\n", strings.Join(parts, ", "))
}
