package schemas

import "time"

// StepOutcome records the result of one executed step. Outcomes are created
// once, in step order, and never mutated afterwards.
type StepOutcome struct {
	Index          int           `json:"index"`
	Step           Step          `json:"step"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Note           string        `json:"note,omitempty"`
	ScreenshotPath string        `json:"screenshotPath,omitempty"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"-"`
	DurationMS     int64         `json:"durationMs"`
}

// FailedSteps counts outcomes with Success == false.
func FailedSteps(outcomes []StepOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}

// CategoryCount pairs the raw and post-tolerance counts of one category.
type CategoryCount struct {
	Raw       int `json:"raw"`
	Effective int `json:"effective"`
}

// RunSummary is the auditable record of one run. It is built once, after
// the browser session has closed.
type RunSummary struct {
	RunID      string                           `json:"runId"`
	Name       string                           `json:"name"`
	BaseURL    string                           `json:"baseUrl"`
	Timestamp  time.Time                        `json:"timestamp"`
	Success    bool                             `json:"success"`
	Counts     map[SignalCategory]CategoryCount `json:"counts"`
	CategoryOK map[SignalCategory]bool          `json:"categoryOk"`
	Effective  RawSignals                       `json:"effective"`
	Steps      []StepOutcome                    `json:"steps"`
	Overrides  Overrides                        `json:"overrides"`
	Tolerance  ToleranceConfig                  `json:"tolerance"`
}

// FailedSteps counts failed step outcomes in the summary.
func (s *RunSummary) FailedSteps() int {
	return FailedSteps(s.Steps)
}
