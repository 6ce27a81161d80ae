// Package executor walks the steps of a test definition against a browser
// session, one at a time, and records one outcome per step.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// Config holds the timeouts and paths the executor applies to every step.
type Config struct {
	// ActionTimeout bounds navigate, click, type and fill.
	ActionTimeout time.Duration
	// SelectorTimeout is used by waitForSelector, expectVisible and expectText
	// when the step does not set its own.
	SelectorTimeout time.Duration
	// ScreenshotDir receives screenshot steps and failure captures.
	ScreenshotDir string
	// CaptureOnFailure enables the failure-step-<n>.png capture.
	CaptureOnFailure bool
}

const (
	defaultActionTimeout    = 30 * time.Second
	failureScreenshotBudget = 10 * time.Second
)

// Executor runs steps sequentially against one session.
type Executor struct {
	session schemas.BrowserActions
	cfg     Config
	logger  *zap.Logger
}

// New builds an Executor. Zero timeouts fall back to the defaults.
func New(session schemas.BrowserActions, cfg Config, logger *zap.Logger) *Executor {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = schemas.DefaultWaitForSelectorTimeout
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "screenshots"
	}
	return &Executor{
		session: session,
		cfg:     cfg,
		logger:  logger.Named("executor"),
	}
}

// Execute runs every step in order and returns exactly one outcome per step.
// A failing step never stops the walk; later steps still run.
func (e *Executor) Execute(ctx context.Context, steps []schemas.Step, baseURL string) []schemas.StepOutcome {
	outcomes := make([]schemas.StepOutcome, 0, len(steps))
	for i, step := range steps {
		outcomes = append(outcomes, e.executeStep(ctx, i, step, baseURL))
	}
	e.logger.Info("Step execution finished.",
		zap.Int("steps", len(steps)),
		zap.Int("failed", schemas.FailedSteps(outcomes)))
	return outcomes
}

func (e *Executor) executeStep(ctx context.Context, index int, step schemas.Step, baseURL string) schemas.StepOutcome {
	logger := e.logger.With(zap.Int("step", index), zap.String("action", string(step.Kind())))
	logger.Debug("Running step.", zap.Stringer("description", step))

	out := schemas.StepOutcome{
		Index:     index,
		Step:      step,
		StartedAt: time.Now().UTC(),
	}

	res, err := e.safeDispatch(ctx, index, step, baseURL, logger)
	out.Duration = time.Since(out.StartedAt)
	out.DurationMS = out.Duration.Milliseconds()
	out.Note = res.note
	out.ScreenshotPath = res.screenshot

	if err == nil {
		out.Success = true
		logger.Debug("Step passed.", zap.Duration("duration", out.Duration))
		return out
	}

	stepErr := &StepError{Index: index, Kind: step.Kind(), Err: err}
	out.Error = stepErr.Error()
	logger.Warn("Step failed.", zap.Error(err), zap.Duration("duration", out.Duration))

	if e.cfg.CaptureOnFailure {
		if path, shotErr := e.captureFailure(ctx, index); shotErr != nil {
			logger.Debug("Failure screenshot could not be captured.", zap.Error(shotErr))
		} else {
			out.ScreenshotPath = path
		}
	}
	return out
}

type stepResult struct {
	note       string
	screenshot string
}

// safeDispatch runs dispatch and turns a panic in the action into a step
// failure, so one misbehaving step cannot end the run.
func (e *Executor) safeDispatch(ctx context.Context, index int, step schemas.Step, baseURL string, logger *zap.Logger) (res stepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Step action panicked.",
				zap.Any("panicValue", r),
				zap.String("stack", string(debug.Stack())),
			)
			res = stepResult{}
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
	}()
	return e.dispatch(ctx, index, step, baseURL)
}

// dispatch is the single place every action kind is handled.
func (e *Executor) dispatch(ctx context.Context, index int, step schemas.Step, baseURL string) (stepResult, error) {
	switch a := step.Action.(type) {
	case schemas.Navigate:
		target, err := ResolveTarget(a, baseURL)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{}, e.withTimeout(ctx, e.cfg.ActionTimeout, "navigation to "+target, func(c context.Context) error {
			return e.session.Navigate(c, target)
		})

	case schemas.Click:
		return stepResult{}, e.withTimeout(ctx, e.cfg.ActionTimeout, "click on "+a.Selector, func(c context.Context) error {
			return e.session.Click(c, a.Selector)
		})

	case schemas.Type:
		return stepResult{}, e.withTimeout(ctx, e.cfg.ActionTimeout, "typing into "+a.Selector, func(c context.Context) error {
			if err := e.session.Type(c, a.Selector, a.Text); err != nil {
				return err
			}
			if a.PressEnter {
				return e.session.PressKey(c, "Enter")
			}
			return nil
		})

	case schemas.Fill:
		return stepResult{}, e.withTimeout(ctx, e.cfg.ActionTimeout, "fill of "+a.Selector, func(c context.Context) error {
			return e.session.Fill(c, a.Selector, a.Text)
		})

	case schemas.WaitForSelector:
		state := a.StateOrDefault()
		if !state.Valid() {
			return stepResult{}, fmt.Errorf("invalid selector state %q", state)
		}
		timeout := schemas.TimeoutOrDefault(a.TimeoutMs, e.cfg.SelectorTimeout)
		return stepResult{}, e.withTimeout(ctx, timeout, fmt.Sprintf("wait for %s to be %s", a.Selector, state), func(c context.Context) error {
			return e.session.WaitForSelector(c, a.Selector, state, timeout)
		})

	case schemas.ExpectVisible:
		timeout := schemas.TimeoutOrDefault(a.TimeoutMs, e.cfg.SelectorTimeout)
		err := e.withTimeout(ctx, timeout, "wait for "+a.Selector+" to be visible", func(c context.Context) error {
			return e.session.WaitForSelector(c, a.Selector, schemas.StateVisible, timeout)
		})
		if err != nil {
			return stepResult{}, fmt.Errorf("%w: %s is not visible: %w", ErrAssertion, a.Selector, err)
		}
		return stepResult{}, nil

	case schemas.ExpectText:
		return stepResult{}, e.expectText(ctx, a)

	case schemas.Wait:
		return stepResult{}, sleep(ctx, time.Duration(a.DurationMs)*time.Millisecond)

	case schemas.Screenshot:
		return e.screenshot(ctx, index, a), nil

	case nil:
		return stepResult{}, fmt.Errorf("%w: step has no action", ErrUnknownAction)

	default:
		return stepResult{}, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
}

func (e *Executor) expectText(ctx context.Context, a schemas.ExpectText) error {
	timeout := schemas.TimeoutOrDefault(a.TimeoutMs, e.cfg.SelectorTimeout)
	var got string
	err := e.withTimeout(ctx, timeout, "wait for "+a.Selector+" to be visible", func(c context.Context) error {
		if err := e.session.WaitForSelector(c, a.Selector, schemas.StateVisible, timeout); err != nil {
			return err
		}
		text, err := e.session.ReadText(c, a.Selector)
		got = text
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s is not readable: %w", ErrAssertion, a.Selector, err)
	}
	if !strings.Contains(got, a.Text) {
		return fmt.Errorf("%w: expected text of %s to contain %q, got %q", ErrAssertion, a.Selector, a.Text, got)
	}
	return nil
}

// screenshot never fails the step. A capture error is reported as a note.
func (e *Executor) screenshot(ctx context.Context, index int, a schemas.Screenshot) stepResult {
	path := filepath.Join(e.cfg.ScreenshotDir, ScreenshotName(index, a.Name))
	err := e.capture(ctx, path)
	if err != nil {
		e.logger.Debug("Screenshot could not be captured.", zap.Int("step", index), zap.Error(err))
		return stepResult{note: "screenshot not captured: " + err.Error()}
	}
	return stepResult{screenshot: path}
}

func (e *Executor) captureFailure(ctx context.Context, index int) (string, error) {
	// The capture must still run when the failure was a cancellation.
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureScreenshotBudget)
	defer cancel()
	path := filepath.Join(e.cfg.ScreenshotDir, fmt.Sprintf("failure-step-%d.png", index))
	if err := e.capture(c, path); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Executor) capture(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	c, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()
	return e.session.Screenshot(c, path)
}

// withTimeout runs fn under a deadline. When the deadline is what stopped fn,
// the returned error names the timeout and wraps context.DeadlineExceeded.
func (e *Executor) withTimeout(ctx context.Context, timeout time.Duration, what string, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(c)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(c.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s: %w", what, timeout, context.DeadlineExceeded)
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolveTarget returns the absolute URL a navigate step should load.
func ResolveTarget(a schemas.Navigate, baseURL string) (string, error) {
	ref := a.URL
	if ref == "" {
		ref = a.Path
	}
	if ref == "" {
		return "", fmt.Errorf("%w: navigate needs a url or a path", ErrUnresolvableTarget)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnresolvableTarget, ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if baseURL == "" {
		return "", fmt.Errorf("%w: %q is relative and no base URL is set", ErrUnresolvableTarget, ref)
	}
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("%w: base URL %q is not absolute", ErrUnresolvableTarget, baseURL)
	}
	return base.ResolveReference(u).String(), nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ScreenshotName returns step-<index>[-<name>].png with name reduced to a
// filesystem-safe form.
func ScreenshotName(index int, name string) string {
	name = strings.Trim(unsafeName.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		return fmt.Sprintf("step-%d.png", index)
	}
	return fmt.Sprintf("step-%d-%s.png", index, name)
}
