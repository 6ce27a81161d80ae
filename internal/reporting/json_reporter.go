// internal/reporting/json_reporter.go
package reporting

import (
	"errors"
	"fmt"
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/observability"
)

// JSONReporter writes the run summary as one indented JSON document.
type JSONReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	mu      sync.Mutex
	summary *schemas.RunSummary
}

// NewJSONReporter creates a reporter that takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: observability.GetLogger().Named("json_reporter"),
	}
}

func (r *JSONReporter) Write(summary *schemas.RunSummary) error {
	if summary == nil {
		return errors.New("nil run summary")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = summary
	return nil
}

// Close encodes the summary and closes the writer, even when encoding fails.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var encodeErr error
	if r.summary != nil {
		encoder := json.ConfigCompatibleWithStandardLibrary.NewEncoder(r.writer)
		encoder.SetIndent("", "  ")
		encodeErr = encoder.Encode(r.summary)
	}
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode run summary to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode JSON summary: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
