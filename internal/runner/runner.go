// File: internal/runner/runner.go
// Description: Drives one test definition end to end. It is injected with the
// session factory and optional sinks via interfaces, making it decoupled and testable.

package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/collector"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
	"github.com/xkilldash9x/tripwire-cli/internal/executor"
	"github.com/xkilldash9x/tripwire-cli/internal/reporting"
	"github.com/xkilldash9x/tripwire-cli/internal/tolerance"
)

// ErrNoBaseURL means neither the run, the definition nor the configuration
// supplied a base URL.
var ErrNoBaseURL = errors.New("no base URL: set baseUrl in the definition, run.base_url in the config, or pass --base-url")

// ConfigError is a pre-flight failure. It is returned before any browser is
// launched.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// Observer receives every finished summary, e.g. a metrics sink.
type Observer interface {
	Observe(summary *schemas.RunSummary)
}

// closeBudget bounds session teardown, which must run even when the run's
// context is already done.
const closeBudget = 15 * time.Second

// Runner owns the lifecycle of one run at a time: session, collector,
// executor, evaluation and assembly.
type Runner struct {
	cfg       config.Interface
	logger    *zap.Logger
	factory   schemas.SessionFactory
	evaluator *tolerance.Evaluator
	store     schemas.RunStore
	observers []Observer

	now   func() time.Time
	newID func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithStore persists every summary to s.
func WithStore(s schemas.RunStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithObserver hands every summary to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithClock replaces time.Now and the run ID generator.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(r *Runner) {
		r.now = now
		r.newID = newID
	}
}

// New creates a Runner with its dependencies provided as interfaces.
func New(cfg config.Interface, factory schemas.SessionFactory, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil ||
		logger == nil ||
		factory == nil {
		return nil, fmt.Errorf("cannot initialize runner with nil dependencies")
	}
	r := &Runner{
		cfg:       cfg,
		logger:    logger.Named("runner"),
		factory:   factory,
		evaluator: tolerance.NewEvaluator(logger),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveBaseURL picks the first non-empty of the run override, the
// definition and the configuration, and checks that it is an absolute URL.
func ResolveBaseURL(override, fromDefinition, fromConfig string) (string, error) {
	var base string
	for _, candidate := range []string{override, fromDefinition, fromConfig} {
		if c := strings.TrimSpace(candidate); c != "" {
			base = c
			break
		}
	}
	if base == "" {
		return "", &ConfigError{Err: ErrNoBaseURL}
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &ConfigError{Err: fmt.Errorf("base URL %q is not an absolute URL", base)}
	}
	return base, nil
}

// Run executes def and returns its summary. Step failures and signals never
// surface as an error; they live in the summary's verdict. The returned error
// is either a *ConfigError or a failure to acquire the browser.
func (r *Runner) Run(ctx context.Context, def *schemas.TestDefinition, baseURLOverride string) (*schemas.RunSummary, error) {
	if def == nil {
		return nil, &ConfigError{Err: errors.New("no test definition")}
	}
	baseURL, err := ResolveBaseURL(baseURLOverride, def.BaseURL, r.cfg.Run().BaseURL)
	if err != nil {
		return nil, err
	}

	runID := r.newID()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("scenario", def.Name))
	started := r.now()
	logger.Info("Run starting.", zap.String("base_url", baseURL), zap.Int("steps", len(def.Steps)))

	session, err := r.factory.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	outcomes, raw := r.drive(ctx, session, def, baseURL, logger)

	overrides := r.cfg.Overrides()
	ev := r.evaluator.Evaluate(raw, def.Tolerance(), overrides)
	summary := reporting.Assemble(reporting.AssembleInput{
		RunID:      runID,
		Definition: def,
		BaseURL:    baseURL,
		Timestamp:  started,
		Outcomes:   outcomes,
		Evaluation: ev,
		Overrides:  overrides,
	})

	logger.Info("Run finished.",
		zap.Bool("success", summary.Success),
		zap.Int("failed_steps", summary.FailedSteps()),
		zap.Int("raw_signals", raw.Total()),
		zap.Int("effective_signals", summary.Effective.Total()))

	r.publish(ctx, summary, logger)
	return summary, nil
}

// drive attaches the collector, walks the steps and closes the session. The
// close is deferred so it also runs when the run unwinds.
func (r *Runner) drive(ctx context.Context, session schemas.BrowserSession, def *schemas.TestDefinition, baseURL string, logger *zap.Logger) ([]schemas.StepOutcome, schemas.RawSignals) {
	col := collector.Attach(session, logger)
	defer r.closeSession(ctx, session, logger)

	runCfg := r.cfg.Run()
	exec := executor.New(session, executor.Config{
		ActionTimeout:    runCfg.ActionTimeout,
		SelectorTimeout:  runCfg.SelectorTimeout,
		ScreenshotDir:    runCfg.ScreenshotDir,
		CaptureOnFailure: runCfg.CaptureOnFailure,
	}, logger)
	outcomes := exec.Execute(ctx, def.Steps, baseURL)

	// Everything emitted up to the last step counts; teardown noise does not.
	col.Detach()
	return outcomes, col.Snapshot()
}

func (r *Runner) closeSession(ctx context.Context, session schemas.BrowserSession, logger *zap.Logger) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeBudget)
	defer cancel()
	if err := session.Close(c); err != nil {
		logger.Warn("Browser session did not close cleanly.", zap.Error(err))
	}
}

// publish hands the summary to the optional sinks. Their failures are
// logged; the summary stays authoritative.
func (r *Runner) publish(ctx context.Context, summary *schemas.RunSummary, logger *zap.Logger) {
	for _, o := range r.observers {
		o.Observe(summary)
	}
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(ctx, summary); err != nil {
		logger.Error("Failed to persist run summary.", zap.Error(err))
	}
}
