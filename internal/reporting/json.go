package reporting

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonReporter emits the report envelope verbatim as indented JSON.
type jsonReporter struct {
	path   string
	logger *zap.Logger
}

func (r *jsonReporter) Format() string { return "json" }

func (r *jsonReporter) Write(report schemas.Report) error {
	out, err := openOutput(r.path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	r.logger.Debug("Wrote JSON report.",
		zap.String("path", r.path),
		zap.Int("findings", len(report.Findings)))
	return nil
}
