// internal/reporting/console_reporter.go
package reporting

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// ConsoleReporter prints a human readable summary. Colors are only emitted
// when the writer is a terminal.
type ConsoleReporter struct {
	writer  io.WriteCloser
	mu      sync.Mutex
	summary *schemas.RunSummary

	pass  lipgloss.Style
	fail  lipgloss.Style
	muted lipgloss.Style
	bold  lipgloss.Style
}

// NewConsoleReporter creates a reporter that takes ownership of writer.
func NewConsoleReporter(writer io.WriteCloser) *ConsoleReporter {
	var out io.Writer = writer
	if nwc, ok := writer.(*nopWriteCloser); ok {
		// Let the renderer see the terminal behind the wrapper.
		out = nwc.Writer
	}
	r := lipgloss.NewRenderer(out)
	return &ConsoleReporter{
		writer: writer,
		pass:   r.NewStyle().Foreground(lipgloss.Color("76")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("204")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("243")),
		bold:   r.NewStyle().Bold(true),
	}
}

func (r *ConsoleReporter) Write(summary *schemas.RunSummary) error {
	if summary == nil {
		return errors.New("nil run summary")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = summary
	return nil
}

func (r *ConsoleReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var writeErr error
	if r.summary != nil {
		_, writeErr = io.WriteString(r.writer, r.render(r.summary))
	}
	closeErr := r.writer.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write console summary: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

func (r *ConsoleReporter) render(s *schemas.RunSummary) string {
	var b strings.Builder

	verdict := r.pass.Render("PASS")
	if !s.Success {
		verdict = r.fail.Render("FAIL")
	}
	name := s.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(&b, "%s %s\n", verdict, r.bold.Render(name))
	fmt.Fprintf(&b, "%s\n", r.muted.Render(fmt.Sprintf("run %s against %s", s.RunID, s.BaseURL)))

	b.WriteString("\nSteps\n")
	for _, o := range s.Steps {
		mark := r.pass.Render("✓")
		if !o.Success {
			mark = r.fail.Render("✗")
		}
		fmt.Fprintf(&b, "  %s %2d  %s %s\n", mark, o.Index, o.Step, r.muted.Render(fmt.Sprintf("(%dms)", o.DurationMS)))
		if o.Error != "" {
			fmt.Fprintf(&b, "        %s\n", r.fail.Render(o.Error))
		}
		if o.Note != "" {
			fmt.Fprintf(&b, "        %s\n", r.muted.Render(o.Note))
		}
		if o.ScreenshotPath != "" {
			fmt.Fprintf(&b, "        %s\n", r.muted.Render("screenshot: "+o.ScreenshotPath))
		}
	}

	b.WriteString("\nSignals\n")
	for _, c := range schemas.Categories {
		count := s.Counts[c]
		mark := r.pass.Render("✓")
		if !s.CategoryOK[c] {
			mark = r.fail.Render("✗")
		}
		fmt.Fprintf(&b, "  %s %-15s %d effective / %d raw\n", mark, c, count.Effective, count.Raw)
		for _, line := range SignalLines(s.Effective, c) {
			fmt.Fprintf(&b, "        %s\n", line)
		}
	}

	fmt.Fprintf(&b, "\n%d/%d steps passed\n", len(s.Steps)-s.FailedSteps(), len(s.Steps))
	return b.String()
}
