// internal/reporting/assemble.go
package reporting

import (
	"time"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/tolerance"
)

// AssembleInput is everything a finished run hands to the assembler.
type AssembleInput struct {
	RunID      string
	Definition *schemas.TestDefinition
	// BaseURL is the base URL the run actually used, after overrides.
	BaseURL    string
	Timestamp  time.Time
	Outcomes   []schemas.StepOutcome
	Evaluation tolerance.Evaluation
	Overrides  schemas.Overrides
}

// Assemble shapes a run's outcomes and evaluation into its summary. It is
// pure: the summary shares no slices or maps with the input.
func Assemble(in AssembleInput) *schemas.RunSummary {
	summary := &schemas.RunSummary{
		RunID:      in.RunID,
		BaseURL:    in.BaseURL,
		Timestamp:  in.Timestamp.UTC(),
		Success:    tolerance.Verdict(in.Outcomes, in.Evaluation),
		Counts:     make(map[schemas.SignalCategory]schemas.CategoryCount, len(schemas.Categories)),
		CategoryOK: make(map[schemas.SignalCategory]bool, len(schemas.Categories)),
		Effective:  copySignals(in.Evaluation.Effective),
		Steps:      append(make([]schemas.StepOutcome, 0, len(in.Outcomes)), in.Outcomes...),
		Overrides:  in.Overrides,
	}
	if in.Definition != nil {
		summary.Name = in.Definition.Name
		summary.Tolerance = copyTolerance(in.Definition.Tolerance())
	}
	for _, c := range schemas.Categories {
		summary.Counts[c] = in.Evaluation.Counts[c]
		summary.CategoryOK[c] = in.Evaluation.OK[c]
	}
	return summary
}

func copySignals(s schemas.RawSignals) schemas.RawSignals {
	return schemas.RawSignals{
		ConsoleErrors:   append(make([]schemas.ConsoleError, 0, len(s.ConsoleErrors)), s.ConsoleErrors...),
		PageErrors:      append(make([]schemas.PageError, 0, len(s.PageErrors)), s.PageErrors...),
		HTTPErrors:      append(make([]schemas.HTTPError, 0, len(s.HTTPErrors)), s.HTTPErrors...),
		RequestFailures: append(make([]schemas.RequestFailure, 0, len(s.RequestFailures)), s.RequestFailures...),
	}
}

func copyTolerance(t schemas.ToleranceConfig) schemas.ToleranceConfig {
	out := t
	out.HTTPStatusAllowlist = append([]int(nil), t.HTTPStatusAllowlist...)
	out.HTTPURLAllowlist = append([]string(nil), t.HTTPURLAllowlist...)
	out.ConsolePatternAllowlist = append([]string(nil), t.ConsolePatternAllowlist...)
	return out
}
