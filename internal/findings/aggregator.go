// Package findings collects the per-unit scan output into one deduplicated,
// deterministically ordered result set.
package findings

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

// dedupeKey identifies a finding by what it points at. Two rules firing on
// the same sink stay distinct; the same rule firing twice on one sink
// collapses.
type dedupeKey struct {
	ruleID string
	file   string
	line   int
}

// Aggregator ingests findings from the engine workers over a channel and
// holds the merged result until the scan completes. Ordering and summary
// computation are deferred to Report, so ingestion stays cheap.
type Aggregator struct {
	input  <-chan schemas.Finding
	logger *zap.Logger

	mu       sync.Mutex
	seen     map[dedupeKey]bool
	findings []schemas.Finding
	unitErrs []schemas.UnitError
	scanned  int
	dropped  int

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// NewAggregator creates an aggregator reading from input. Call Start exactly
// once to begin ingestion and Stop to drain and finalize.
func NewAggregator(input <-chan schemas.Finding, logger *zap.Logger) *Aggregator {
	a := &Aggregator{
		input:  input,
		logger: logger.Named("aggregator"),
		seen:   make(map[dedupeKey]bool),
		stop:   make(chan struct{}),
	}
	// Registered here, not in Start, so a Stop racing an unscheduled Start
	// goroutine still waits for ingestion to finish.
	a.wg.Add(1)
	return a
}

// Start runs the ingestion loop until Stop is called, the context is
// cancelled, or the input channel closes.
func (a *Aggregator) Start(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case f, ok := <-a.input:
			if !ok {
				return
			}
			a.ingest(f)

		case <-ctx.Done():
			a.logger.Warn("Context cancelled, draining remaining findings.")
			a.drain()
			return

		case <-a.stop:
			a.drain()
			return
		}
	}
}

// Stop signals the ingestion loop to drain and waits for it to finish. Safe
// to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
}

func (a *Aggregator) drain() {
	for {
		select {
		case f, ok := <-a.input:
			if !ok {
				return
			}
			a.ingest(f)
		default:
			return
		}
	}
}

func (a *Aggregator) ingest(f schemas.Finding) {
	if f.ObservedAt.IsZero() {
		f.ObservedAt = time.Now().UTC()
	}

	key := dedupeKey{ruleID: f.RuleID, file: f.File, line: f.StartLine}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seen[key] {
		a.dropped++
		a.logger.Debug("Dropped duplicate finding.",
			zap.String("rule", f.RuleID),
			zap.String("file", f.File),
			zap.Int("line", f.StartLine))
		return
	}
	a.seen[key] = true
	a.findings = append(a.findings, f)
}

// RecordUnit counts a successfully scanned unit.
func (a *Aggregator) RecordUnit() {
	a.mu.Lock()
	a.scanned++
	a.mu.Unlock()
}

// RecordUnitError registers a unit that could not be modeled. The error is
// reported alongside the findings; it never fails the scan.
func (a *Aggregator) RecordUnitError(e schemas.UnitError) {
	a.mu.Lock()
	a.unitErrs = append(a.unitErrs, e)
	a.mu.Unlock()
}

// Findings returns the deduplicated findings in report order: severity
// descending, then file, line, and rule id as tie breakers.
func (a *Aggregator) Findings() []schemas.Finding {
	a.mu.Lock()
	out := make([]schemas.Finding, len(a.findings))
	copy(out, a.findings)
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank(); ri != rj {
			return ri > rj
		}
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// Report assembles the final envelope for the reporters. Call after Stop.
func (a *Aggregator) Report(scanID, tool, version string) schemas.Report {
	ordered := a.Findings()

	a.mu.Lock()
	errs := make([]schemas.UnitError, len(a.unitErrs))
	copy(errs, a.unitErrs)
	scanned := a.scanned
	a.mu.Unlock()

	sort.Slice(errs, func(i, j int) bool {
		if errs[i].File != errs[j].File {
			return errs[i].File < errs[j].File
		}
		return errs[i].Line < errs[j].Line
	})

	summary := schemas.Summary{
		UnitsScanned: scanned,
		UnitsFailed:  len(errs),
		BySeverity:   make(map[schemas.Severity]int),
		ByRule:       make(map[string]int),
	}
	for _, f := range ordered {
		summary.BySeverity[f.Severity]++
		summary.ByRule[f.RuleID]++
	}

	return schemas.Report{
		ScanID:      scanID,
		Tool:        tool,
		Version:     version,
		GeneratedAt: time.Now().UTC(),
		Findings:    ordered,
		Errors:      errs,
		Summary:     summary,
	}
}
