// internal/browser/interaction.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

const pollInterval = 100 * time.Millisecond

// selectorStateJS reports whether the first match of selector is in state.
// An element counts as visible when it has a non-empty box and is not
// visibility:hidden.
const selectorStateJS = `function(selector, state) {
	const el = document.querySelector(selector);
	if (state === "attached") return el !== null;
	if (state === "detached") return el === null;
	let visible = false;
	if (el !== null) {
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		visible = style.visibility !== "hidden" && rect.width > 0 && rect.height > 0;
	}
	return state === "visible" ? visible : !visible;
}`

// setValueJS writes value into the field and fires the events frameworks
// listen for. It returns false when the field cannot take input.
const setValueJS = `function(selector, value) {
	const el = document.querySelector(selector);
	if (!el || el.disabled || el.readOnly) return false;
	if (el.isContentEditable) {
		el.textContent = value;
	} else {
		el.value = value;
	}
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
}`

// Named keys PressKey understands. Anything else is sent as typed.
var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
	"Space":      " ",
}

// Navigate loads url and waits for the page to stabilize.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navCtx, navCancel := context.WithTimeout(opCtx, s.navigationTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigation timed out after %s: %w", s.navigationTimeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	// Stabilization uses the operation context, not the navigation one.
	return s.stabilize(opCtx)
}

// Click waits for the element to be visible and clicks its center.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element", zap.String("selector", selector))
	return s.runActions(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

// Fill replaces the field's value in one write.
func (s *Session) Fill(ctx context.Context, selector, text string) error {
	s.logger.Debug("Filling element", zap.String("selector", selector))
	var ok bool
	err := s.runActions(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(callJS(setValueJS, selector, text), &ok),
	)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s does not accept input", selector)
	}
	return nil
}

// Type clears the field and then sends text one key at a time.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	s.logger.Debug("Typing into element", zap.String("selector", selector), zap.Int("length", len(text)))
	var ok bool
	err := s.runActions(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(callJS(setValueJS, selector, ""), &ok),
	)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s does not accept input", selector)
	}
	return s.runActions(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// PressKey sends one key to whatever element has focus.
func (s *Session) PressKey(ctx context.Context, key string) error {
	k, ok := namedKeys[key]
	if !ok {
		k = key
	}
	return s.runActions(ctx, chromedp.KeyEvent(k))
}

// WaitForSelector polls until the first match of selector reaches state.
func (s *Session) WaitForSelector(ctx context.Context, selector string, state schemas.SelectorState, timeout time.Duration) error {
	if !state.Valid() {
		return fmt.Errorf("invalid selector state %q", state)
	}
	var ok bool
	opts := []chromedp.PollOption{
		chromedp.WithPollingArgs(selector, string(state)),
		chromedp.WithPollingInterval(pollInterval),
	}
	if timeout > 0 {
		opts = append(opts, chromedp.WithPollingTimeout(timeout))
	}
	err := s.runActions(ctx, chromedp.PollFunction(selectorStateJS, &ok, opts...))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return fmt.Errorf("%s did not become %s within %s: %w", selector, state, timeout, context.DeadlineExceeded)
	}
	return err
}

// ReadText returns the rendered text of the first element matching selector.
func (s *Session) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := s.runActions(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// Screenshot writes a full-page PNG to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	// Quality 100 selects PNG encoding.
	if err := s.runActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	s.logger.Debug("Screenshot saved.", zap.String("path", path), zap.Int("bytes", len(buf)))
	return nil
}

// callJS renders an immediately invoked call of fn with JSON-encoded args.
func callJS(fn string, args ...string) string {
	encoded := make([]byte, 0, 64)
	for i, a := range args {
		if i > 0 {
			encoded = append(encoded, ", "...)
		}
		b, _ := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(a)
		encoded = append(encoded, b...)
	}
	return fmt.Sprintf("(%s)(%s)", fn, encoded)
}
