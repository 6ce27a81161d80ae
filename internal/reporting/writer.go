// internal/reporting/writer.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a scenario name into a file name stem.
func Slug(name string) string {
	s := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "run"
	}
	return s
}

// FileName returns the report file name for format.
func FileName(summary *schemas.RunSummary, format string) string {
	stem := Slug(summary.Name)
	switch format {
	case config.FormatJUnit:
		return stem + "-junit.xml"
	default:
		return stem + "-summary." + format
	}
}

// WriteAll renders every configured file report into cfg.OutputDir in
// parallel, then the console summary to stdout when enabled. It returns the
// paths of the files written.
func WriteAll(summary *schemas.RunSummary, cfg config.ReportConfig, stdout io.Writer) ([]string, error) {
	formats := normalizeFormats(cfg.Formats)
	paths := make([]string, len(formats))
	if len(formats) > 0 {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory %s: %w", cfg.OutputDir, err)
		}
	}

	var g errgroup.Group
	for i, format := range formats {
		path := filepath.Join(cfg.OutputDir, FileName(summary, format))
		paths[i] = path
		g.Go(func() error {
			return writeOne(format, path, summary, stdout)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cfg.Console {
		if err := writeOne(FormatConsole, "stdout", summary, stdout); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

// normalizeFormats lowercases and trims formats and drops blanks and
// repeats, keeping first-seen order. Each format owns one output file.
func normalizeFormats(formats []string) []string {
	seen := make(map[string]struct{}, len(formats))
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func writeOne(format, path string, summary *schemas.RunSummary, stdout io.Writer) error {
	r, err := NewWithStdout(format, path, stdout)
	if err != nil {
		return err
	}
	if err := r.Write(summary); err != nil {
		r.Close()
		return err
	}
	return r.Close()
}
