package reporting

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

// junitReporter maps the report onto JUnit XML for CI systems: one testsuite
// per rule that produced findings, one failed testcase per finding, and an
// error case per unscannable unit.
type junitReporter struct {
	path   string
	logger *zap.Logger
}

func (r *junitReporter) Format() string { return "junit" }

func (r *junitReporter) Write(report schemas.Report) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", report.Tool)
	suites.CreateAttr("tests", strconv.Itoa(len(report.Findings)+len(report.Errors)))
	suites.CreateAttr("failures", strconv.Itoa(len(report.Findings)))
	suites.CreateAttr("errors", strconv.Itoa(len(report.Errors)))

	byRule := make(map[string]*etree.Element)
	for _, f := range report.Findings {
		suite, ok := byRule[f.RuleID]
		if !ok {
			suite = suites.CreateElement("testsuite")
			suite.CreateAttr("name", f.RuleID)
			byRule[f.RuleID] = suite
		}

		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", fmt.Sprintf("%s at %s:%d", f.RuleTitle, f.File, f.StartLine))
		tc.CreateAttr("classname", f.File)

		failure := tc.CreateElement("failure")
		failure.CreateAttr("type", string(f.Severity))
		failure.CreateAttr("message", f.Message)
		body := f.Message
		if summary := f.PathSummary(); summary != "" {
			body = fmt.Sprintf("%s\nflow: %s", body, summary)
		}
		failure.SetText(body)
	}

	for _, suite := range byRule {
		suite.CreateAttr("tests", strconv.Itoa(len(suite.SelectElements("testcase"))))
		suite.CreateAttr("failures", strconv.Itoa(len(suite.SelectElements("testcase"))))
	}

	if len(report.Errors) > 0 {
		errSuite := suites.CreateElement("testsuite")
		errSuite.CreateAttr("name", "unit-errors")
		errSuite.CreateAttr("tests", strconv.Itoa(len(report.Errors)))
		errSuite.CreateAttr("errors", strconv.Itoa(len(report.Errors)))
		for _, e := range report.Errors {
			tc := errSuite.CreateElement("testcase")
			tc.CreateAttr("name", e.File)
			ee := tc.CreateElement("error")
			ee.CreateAttr("message", e.Message)
			if e.Line > 0 {
				ee.SetText(fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message))
			} else {
				ee.SetText(fmt.Sprintf("%s: %s", e.File, e.Message))
			}
		}
	}

	out, err := openOutput(r.path)
	if err != nil {
		return err
	}
	defer out.Close()

	doc.Indent(2)
	if _, err := doc.WriteTo(out); err != nil {
		return fmt.Errorf("write junit report: %w", err)
	}
	r.logger.Debug("Wrote JUnit report.",
		zap.String("path", r.path),
		zap.Int("failures", len(report.Findings)))
	return nil
}
