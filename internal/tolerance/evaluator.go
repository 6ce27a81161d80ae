// Package tolerance reconciles the raw runtime signals of a run against the
// scenario's tolerance policy and the process-wide overrides, and derives the
// overall verdict.
package tolerance

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// Policy is a ToleranceConfig with its allowlists compiled.
type Policy struct {
	cfg      schemas.ToleranceConfig
	statuses map[int]struct{}
	urls     []Matcher
	console  []Matcher
}

// NewPolicy compiles cfg. Compilation never fails; entries that are not valid
// regular expressions degrade to substring matching.
func NewPolicy(cfg schemas.ToleranceConfig) *Policy {
	p := &Policy{
		cfg:      cfg,
		statuses: make(map[int]struct{}, len(cfg.HTTPStatusAllowlist)),
		urls:     CompileAll(cfg.HTTPURLAllowlist),
		console:  CompileAll(cfg.ConsolePatternAllowlist),
	}
	for _, s := range cfg.HTTPStatusAllowlist {
		p.statuses[s] = struct{}{}
	}
	return p
}

// LiteralPatterns returns the allowlist entries that fell back to substring
// matching.
func (p *Policy) LiteralPatterns() []string {
	var out []string
	for _, m := range append(append([]Matcher{}, p.urls...), p.console...) {
		if m.Literal() {
			out = append(out, m.String())
		}
	}
	return out
}

// Filter drops every record suppressed by a content allowlist. The result of
// each category is an order-preserving subset of its input, and filtering a
// filtered set again changes nothing. Category toggles are not consulted
// here; they only affect the category verdict.
func (p *Policy) Filter(raw schemas.RawSignals) schemas.RawSignals {
	out := schemas.RawSignals{
		ConsoleErrors:   make([]schemas.ConsoleError, 0, len(raw.ConsoleErrors)),
		PageErrors:      make([]schemas.PageError, 0, len(raw.PageErrors)),
		HTTPErrors:      make([]schemas.HTTPError, 0, len(raw.HTTPErrors)),
		RequestFailures: make([]schemas.RequestFailure, 0, len(raw.RequestFailures)),
	}
	for _, e := range raw.HTTPErrors {
		if p.allowsHTTP(e) {
			continue
		}
		out.HTTPErrors = append(out.HTTPErrors, e)
	}
	for _, e := range raw.ConsoleErrors {
		if matchAny(p.console, e.Text) {
			continue
		}
		out.ConsoleErrors = append(out.ConsoleErrors, e)
	}
	// pageError and requestFailure have no content allowlist.
	out.PageErrors = append(out.PageErrors, raw.PageErrors...)
	out.RequestFailures = append(out.RequestFailures, raw.RequestFailures...)
	return out
}

func (p *Policy) allowsHTTP(e schemas.HTTPError) bool {
	if _, ok := p.statuses[e.Status]; ok {
		return true
	}
	return matchAny(p.urls, e.URL)
}

// Evaluation is the tolerance outcome of one run.
type Evaluation struct {
	Effective schemas.RawSignals
	OK        map[schemas.SignalCategory]bool
	Counts    map[schemas.SignalCategory]schemas.CategoryCount
}

// AllOK reports whether every category passed.
func (e Evaluation) AllOK() bool {
	for _, c := range schemas.Categories {
		if !e.OK[c] {
			return false
		}
	}
	return true
}

// Evaluate filters raw and decides each category. A category is ok when its
// override is set, its toggle is set, or nothing remains after filtering.
func (p *Policy) Evaluate(raw schemas.RawSignals, overrides schemas.Overrides) Evaluation {
	eff := p.Filter(raw)
	ev := Evaluation{
		Effective: eff,
		OK:        make(map[schemas.SignalCategory]bool, len(schemas.Categories)),
		Counts:    make(map[schemas.SignalCategory]schemas.CategoryCount, len(schemas.Categories)),
	}
	for _, c := range schemas.Categories {
		n := eff.Count(c)
		ev.Counts[c] = schemas.CategoryCount{Raw: raw.Count(c), Effective: n}
		ev.OK[c] = overrides.Ignores(c) || p.cfg.Tolerates(c) || n == 0
	}
	return ev
}

// Evaluate is shorthand for NewPolicy(cfg).Evaluate(raw, overrides).
func Evaluate(raw schemas.RawSignals, cfg schemas.ToleranceConfig, overrides schemas.Overrides) Evaluation {
	return NewPolicy(cfg).Evaluate(raw, overrides)
}

// Verdict is true only when no step failed and every category is ok.
func Verdict(outcomes []schemas.StepOutcome, ev Evaluation) bool {
	return schemas.FailedSteps(outcomes) == 0 && ev.AllOK()
}

// Evaluator wraps Evaluate with logging.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator returns an Evaluator that logs through logger.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger.Named("tolerance")}
}

// Evaluate compiles cfg, reports degraded patterns at debug and evaluates raw.
func (e *Evaluator) Evaluate(raw schemas.RawSignals, cfg schemas.ToleranceConfig, overrides schemas.Overrides) Evaluation {
	p := NewPolicy(cfg)
	for _, expr := range p.LiteralPatterns() {
		e.logger.Debug("Allowlist entry is not a valid regular expression, matching as substring.", zap.String("pattern", expr))
	}
	ev := p.Evaluate(raw, overrides)
	for _, c := range schemas.Categories {
		cnt := ev.Counts[c]
		if cnt.Raw != cnt.Effective {
			e.logger.Debug("Signals suppressed by allowlist.",
				zap.String("category", string(c)),
				zap.Int("raw", cnt.Raw),
				zap.Int("effective", cnt.Effective))
		}
	}
	return ev
}
