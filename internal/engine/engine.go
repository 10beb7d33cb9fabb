// Package engine drives a scan: it fans scan units out over a worker pool,
// runs each through the model/graph/rule pipeline, and funnels the resulting
// findings into the aggregator.
package engine

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/taintscope/api/schemas"
	"github.com/xkilldash9x/taintscope/internal/config"
	"github.com/xkilldash9x/taintscope/internal/findings"
	"github.com/xkilldash9x/taintscope/internal/rules"
	"github.com/xkilldash9x/taintscope/internal/source"
	"github.com/xkilldash9x/taintscope/internal/taint"
)

// Tool is the scanner name stamped into reports.
const Tool = "taintscope"

// Engine holds the per-scan pipeline components. An engine is safe for
// concurrent use; each unit is processed independently.
type Engine struct {
	cfg     config.EngineConfig
	logger  *zap.Logger
	adapter *source.Adapter
	builder *taint.Builder
	rules   *rules.RuleSet
	version string
}

// New assembles an engine over the given rule set.
func New(cfg config.EngineConfig, rs *rules.RuleSet, logger *zap.Logger, version string) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger.Named("engine"),
		adapter: source.NewAdapter(logger),
		builder: taint.NewBuilder(logger),
		rules:   rs,
		version: version,
	}
}

// Scan processes every file through the pipeline and returns the aggregated
// report. Unit failures are isolated: a file that cannot be read or parsed
// is recorded as a unit error and the scan continues. The returned error is
// non-nil only when the context was cancelled.
func (e *Engine) Scan(ctx context.Context, scanID string, files []string) (schemas.Report, error) {
	start := time.Now()
	e.logger.Info("Scan started.",
		zap.String("scan_id", scanID),
		zap.Int("units", len(files)),
		zap.Int("workers", e.cfg.Workers),
		zap.Int("rules", len(e.rules.Rules)))

	out := make(chan schemas.Finding, 64)
	agg := findings.NewAggregator(out, e.logger)

	aggDone := make(chan struct{})
	go func() {
		agg.Start(ctx)
		close(aggDone)
	}()

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			e.scanFile(groupCtx, scanID, file, out, agg)
			return nil
		})
	}

	err := g.Wait()
	agg.Stop()
	<-aggDone

	report := agg.Report(scanID, Tool, e.version)
	e.logger.Info("Scan finished.",
		zap.String("scan_id", scanID),
		zap.Int("findings", len(report.Findings)),
		zap.Int("unit_errors", len(report.Errors)),
		zap.Duration("elapsed", time.Since(start)))

	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

// scanFile runs one file through the pipeline and routes the outcome into
// the aggregator. Nothing here fails the scan.
func (e *Engine) scanFile(ctx context.Context, scanID, file string, out chan<- schemas.Finding, agg *findings.Aggregator) {
	src, err := os.ReadFile(file)
	if err != nil {
		e.logger.Warn("Unable to read unit.", zap.String("file", file), zap.Error(err))
		agg.RecordUnitError(schemas.UnitError{File: file, Message: err.Error()})
		return
	}

	found, err := e.ScanUnit(ctx, file, src)
	if err != nil {
		var pe *source.ParseError
		if errors.As(err, &pe) {
			e.logger.Debug("Skipping unit with parse error.",
				zap.String("file", pe.File), zap.Int("line", pe.Line))
			agg.RecordUnitError(schemas.UnitError{File: pe.File, Line: pe.Line, Message: pe.Message})
			return
		}
		if ctx.Err() != nil {
			return
		}
		e.logger.Error("Unit processing failed.", zap.String("file", file), zap.Error(err))
		agg.RecordUnitError(schemas.UnitError{File: file, Message: err.Error()})
		return
	}

	agg.RecordUnit()
	for _, f := range found {
		f.ScanID = scanID
		select {
		case out <- f:
		case <-ctx.Done():
			return
		}
	}
}

// ScanUnit runs the full pipeline for a single unit: model the source, build
// the value-flow graph, classify it under every rule, then trace each tagged
// sink back to an unsanitized source.
func (e *Engine) ScanUnit(ctx context.Context, file string, src []byte) ([]schemas.Finding, error) {
	unitCtx := ctx
	if e.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, e.cfg.UnitTimeout)
		defer cancel()
	}

	unit, err := e.adapter.Parse(unitCtx, file, src)
	if err != nil {
		return nil, err
	}

	graph, err := e.builder.Build(unit)
	if err != nil {
		return nil, err
	}
	if err := rules.Classify(graph, e.rules); err != nil {
		return nil, err
	}

	var out []schemas.Finding
	for _, rule := range e.rules.Rules {
		for _, path := range graph.Evaluate(rule.ID) {
			out = append(out, e.buildFinding(rule, graph, path))
		}
	}
	return out, nil
}

// buildFinding turns one traced path into the immutable report record.
func (e *Engine) buildFinding(rule rules.Rule, g *taint.Graph, p taint.Path) schemas.Finding {
	steps := make([]schemas.TraceStep, len(p.Nodes))
	for i, id := range p.Nodes {
		n := g.Node(id)
		steps[i] = schemas.TraceStep{
			Kind:      string(n.Kind),
			Name:      n.Name,
			File:      n.Span.File,
			Line:      n.Span.StartLine,
			Column:    n.Span.StartCol,
			Synthetic: n.Synthetic,
		}
	}

	sink := g.Node(p.Nodes[len(p.Nodes)-1])
	return schemas.Finding{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		RuleTitle:   rule.Title,
		Severity:    rule.SeverityLevel(),
		Confidence:  p.Confidence(),
		File:        sink.Span.File,
		StartLine:   sink.Span.StartLine,
		EndLine:     sink.Span.EndLine,
		Message:     rule.Message,
		Remediation: rule.Remediation,
		CWE:         rule.CWE,
		Path:        steps,
		ObservedAt:  time.Now().UTC(),
	}
}
