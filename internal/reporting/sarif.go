package reporting

import (
	"fmt"

	"github.com/owenrumney/go-sarif/v2/sarif"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

const toolInfoURI = "https://github.com/xkilldash9x/taintscope"

// sarifReporter renders SARIF 2.1.0 with one code flow per finding, so code
// scanning UIs can show the full source-to-sink trace.
type sarifReporter struct {
	path   string
	logger *zap.Logger
}

func (r *sarifReporter) Format() string { return "sarif" }

func (r *sarifReporter) Write(report schemas.Report) error {
	doc, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("create sarif report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(report.Tool, toolInfoURI)
	if report.Version != "" {
		version := report.Version
		run.Tool.Driver.Version = &version
	}

	declared := make(map[string]bool)
	for _, f := range report.Findings {
		if !declared[f.RuleID] {
			declared[f.RuleID] = true
			run.AddRule(f.RuleID).
				WithDescription(f.RuleTitle).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: severityToLevel(f.Severity),
				})
		}

		result := sarif.NewRuleResult(f.RuleID).
			WithLevel(severityToLevel(f.Severity)).
			WithMessage(sarif.NewTextMessage(resultMessage(f))).
			WithLocations([]*sarif.Location{location(f.File, f.StartLine, f.EndLine)})
		result.CodeFlows = []*sarif.CodeFlow{codeFlow(f)}
		run.AddResult(result)
	}

	doc.AddRun(run)

	out, err := openOutput(r.path)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := doc.PrettyWrite(out); err != nil {
		return fmt.Errorf("write sarif report: %w", err)
	}
	r.logger.Debug("Wrote SARIF report.",
		zap.String("path", r.path),
		zap.Int("results", len(report.Findings)))
	return nil
}

func resultMessage(f schemas.Finding) string {
	msg := f.Message
	if summary := f.PathSummary(); summary != "" {
		msg = fmt.Sprintf("%s Flow: %s.", msg, summary)
	}
	return msg
}

func location(file string, startLine, endLine int) *sarif.Location {
	if endLine < startLine {
		endLine = startLine
	}
	return sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(file)).
			WithRegion(sarif.NewRegion().WithStartLine(startLine).WithEndLine(endLine)),
	)
}

// codeFlow converts the taint path into a single SARIF thread flow.
func codeFlow(f schemas.Finding) *sarif.CodeFlow {
	locations := make([]*sarif.ThreadFlowLocation, 0, len(f.Path))
	for _, step := range f.Path {
		loc := location(step.File, step.Line, step.Line)
		label := step.Kind
		if step.Name != "" {
			label = fmt.Sprintf("%s %s", step.Kind, step.Name)
		}
		loc.Message = sarif.NewTextMessage(label)
		locations = append(locations, &sarif.ThreadFlowLocation{Location: loc})
	}
	return &sarif.CodeFlow{
		ThreadFlows: []*sarif.ThreadFlow{{Locations: locations}},
	}
}

func severityToLevel(s schemas.Severity) string {
	switch s {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return "error"
	case schemas.SeverityMedium:
		return "warning"
	case schemas.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
