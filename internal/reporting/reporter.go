// Package reporting renders a finished scan report into its output formats:
// human-readable text, JSON, SARIF for code scanning platforms, and JUnit
// XML for CI systems.
package reporting

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

// Reporter renders one complete report to its destination.
type Reporter interface {
	Write(report schemas.Report) error
	// Format names the output format the reporter produces.
	Format() string
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New creates a reporter for the given format. An empty or "stdout" path
// writes to standard output; an empty format defaults to text.
func New(format, outputPath string, logger *zap.Logger) (Reporter, error) {
	log := logger.Named("reporter")
	switch format {
	case "", "text":
		return &textReporter{path: outputPath, logger: log}, nil
	case "json":
		return &jsonReporter{path: outputPath, logger: log}, nil
	case "sarif":
		return &sarifReporter{path: outputPath, logger: log}, nil
	case "junit":
		return &junitReporter{path: outputPath, logger: log}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// openOutput resolves the destination writer at write time, so a failed scan
// never leaves an empty report file behind.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "stdout" {
		return &nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}
