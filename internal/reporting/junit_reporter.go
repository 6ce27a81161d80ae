// internal/reporting/junit_reporter.go
package reporting

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/observability"
)

// JUnitReporter renders the summary as JUnit XML for CI systems: one test
// case per step and one per signal category.
type JUnitReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	mu      sync.Mutex
	summary *schemas.RunSummary
}

// NewJUnitReporter creates a reporter that takes ownership of writer.
func NewJUnitReporter(writer io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{
		writer: writer,
		logger: observability.GetLogger().Named("junit_reporter"),
	}
}

func (r *JUnitReporter) Write(summary *schemas.RunSummary) error {
	if summary == nil {
		return errors.New("nil run summary")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = summary
	return nil
}

// Close renders the document and closes the writer, even when rendering
// fails.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var writeErr error
	if r.summary != nil {
		doc := BuildJUnit(r.summary)
		doc.Indent(2)
		_, writeErr = doc.WriteTo(r.writer)
	}
	closeErr := r.writer.Close()

	if writeErr != nil {
		r.logger.Error("Failed to write JUnit report", zap.Error(writeErr))
		return fmt.Errorf("failed to write JUnit report: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// BuildJUnit converts a summary into a JUnit XML document.
func BuildJUnit(s *schemas.RunSummary) *etree.Document {
	name := s.Name
	if name == "" {
		name = "tripwire"
	}

	var total float64
	for _, o := range s.Steps {
		total += o.Duration.Seconds()
	}
	failures := s.FailedSteps()
	for _, c := range schemas.Categories {
		if !s.CategoryOK[c] {
			failures++
		}
	}
	tests := len(s.Steps) + len(schemas.Categories)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", name)
	suites.CreateAttr("tests", strconv.Itoa(tests))
	suites.CreateAttr("failures", strconv.Itoa(failures))
	suites.CreateAttr("time", seconds(total))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", name)
	suite.CreateAttr("tests", strconv.Itoa(tests))
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("time", seconds(total))
	if !s.Timestamp.IsZero() {
		suite.CreateAttr("timestamp", s.Timestamp.Format("2006-01-02T15:04:05"))
	}

	props := suite.CreateElement("properties")
	addProperty(props, "runId", s.RunID)
	addProperty(props, "baseUrl", s.BaseURL)

	for _, o := range s.Steps {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", name+".steps")
		tc.CreateAttr("name", fmt.Sprintf("step %d: %s", o.Index, o.Step))
		tc.CreateAttr("time", seconds(o.Duration.Seconds()))
		if !o.Success {
			failure := tc.CreateElement("failure")
			failure.CreateAttr("message", o.Error)
			failure.CreateAttr("type", string(o.Step.Kind()))
			if o.ScreenshotPath != "" {
				failure.SetText("screenshot: " + o.ScreenshotPath)
			}
		}
		if o.Note != "" {
			tc.CreateElement("system-out").SetText(o.Note)
		}
	}

	for _, c := range schemas.Categories {
		count := s.Counts[c]
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", name+".signals")
		tc.CreateAttr("name", string(c))
		tc.CreateAttr("time", "0")
		if !s.CategoryOK[c] {
			failure := tc.CreateElement("failure")
			failure.CreateAttr("message", fmt.Sprintf("%d untolerated %s signal(s) (%d raw)", count.Effective, c, count.Raw))
			failure.CreateAttr("type", string(c))
			failure.SetText(strings.Join(SignalLines(s.Effective, c), "\n"))
		}
	}
	return doc
}

func addProperty(parent *etree.Element, name, value string) {
	p := parent.CreateElement("property")
	p.CreateAttr("name", name)
	p.CreateAttr("value", value)
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// SignalLines renders each signal of category c on one line.
func SignalLines(sig schemas.RawSignals, c schemas.SignalCategory) []string {
	var lines []string
	switch c {
	case schemas.CategoryConsoleError:
		for _, e := range sig.ConsoleErrors {
			if e.Location != "" {
				lines = append(lines, fmt.Sprintf("%s (%s)", e.Text, e.Location))
			} else {
				lines = append(lines, e.Text)
			}
		}
	case schemas.CategoryPageError:
		for _, e := range sig.PageErrors {
			lines = append(lines, e.Message)
		}
	case schemas.CategoryHTTPError:
		for _, e := range sig.HTTPErrors {
			lines = append(lines, strings.TrimSpace(fmt.Sprintf("%d %s %s", e.Status, e.URL, e.StatusText)))
		}
	case schemas.CategoryRequestFailure:
		for _, e := range sig.RequestFailures {
			lines = append(lines, fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Failure))
		}
	}
	return lines
}
