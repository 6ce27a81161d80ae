// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
)

// FormatConsole is the terminal summary. It is always written to stdout and
// never to a file.
const FormatConsole = "console"

// Reporter renders a run summary to an output.
type Reporter interface {
	// Write records the summary to be rendered.
	Write(summary *schemas.RunSummary) error
	// Close renders the report and closes the underlying writer.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath. An empty path or
// "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	return NewWithStdout(format, outputPath, os.Stdout)
}

// NewWithStdout is New with an explicit standard output.
func NewWithStdout(format, outputPath string, stdout io.Writer) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case config.FormatJSON:
		return NewJSONReporter(writer), nil
	case config.FormatJUnit:
		return NewJUnitReporter(writer), nil
	case FormatConsole:
		return NewConsoleReporter(writer), nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
