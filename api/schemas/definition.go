package schemas

// -- Test Definition Schemas --

// TestDefinition is a single user-flow scenario: an ordered list of steps run
// against one browser session, plus the tolerance policy that decides which
// runtime signals are expected.
type TestDefinition struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL     string           `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Steps       []Step           `json:"steps" yaml:"steps"`
	Tolerate    *ToleranceConfig `json:"tolerate,omitempty" yaml:"tolerate,omitempty"`
}

// Tolerance returns the definition's tolerance policy, or the zero policy
// (nothing tolerated) when none was declared.
func (d *TestDefinition) Tolerance() ToleranceConfig {
	if d == nil || d.Tolerate == nil {
		return ToleranceConfig{}
	}
	return *d.Tolerate
}

// ToleranceConfig is the per-scenario exception policy. The zero value
// tolerates nothing.
type ToleranceConfig struct {
	HTTPErrors      bool `json:"httpErrors,omitempty" yaml:"httpErrors,omitempty"`
	ConsoleErrors   bool `json:"consoleErrors,omitempty" yaml:"consoleErrors,omitempty"`
	PageErrors      bool `json:"pageErrors,omitempty" yaml:"pageErrors,omitempty"`
	RequestFailures bool `json:"requestFailures,omitempty" yaml:"requestFailures,omitempty"`

	// Content allowlists. Only the http and console categories have one.
	HTTPStatusAllowlist     []int    `json:"httpStatusAllowlist,omitempty" yaml:"httpStatusAllowlist,omitempty"`
	HTTPURLAllowlist        []string `json:"httpUrlAllowlist,omitempty" yaml:"httpUrlAllowlist,omitempty"`
	ConsolePatternAllowlist []string `json:"consolePatternAllowlist,omitempty" yaml:"consolePatternAllowlist,omitempty"`
}

// Overrides are the process-wide "ignore this category" switches, supplied by
// the environment for ad-hoc triage. They are distinct from a scenario's
// ToleranceConfig and are always passed explicitly.
type Overrides struct {
	IgnoreHTTPErrors      bool `json:"ignoreHttpErrors" mapstructure:"ignore_http_errors"`
	IgnoreConsoleErrors   bool `json:"ignoreConsoleErrors" mapstructure:"ignore_console_errors"`
	IgnorePageErrors      bool `json:"ignorePageErrors" mapstructure:"ignore_page_errors"`
	IgnoreRequestFailures bool `json:"ignoreRequestFailures" mapstructure:"ignore_request_failures"`
}

// Ignores reports whether the override for the given category is set.
func (o Overrides) Ignores(c SignalCategory) bool {
	switch c {
	case CategoryHTTPError:
		return o.IgnoreHTTPErrors
	case CategoryConsoleError:
		return o.IgnoreConsoleErrors
	case CategoryPageError:
		return o.IgnorePageErrors
	case CategoryRequestFailure:
		return o.IgnoreRequestFailures
	}
	return false
}

// Tolerates reports whether the category-wide toggle is set.
func (t ToleranceConfig) Tolerates(c SignalCategory) bool {
	switch c {
	case CategoryHTTPError:
		return t.HTTPErrors
	case CategoryConsoleError:
		return t.ConsoleErrors
	case CategoryPageError:
		return t.PageErrors
	case CategoryRequestFailure:
		return t.RequestFailures
	}
	return false
}
