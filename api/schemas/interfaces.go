package schemas

import (
	"context"
	"time"
)

// -- Browser Capability Interfaces --

// BrowserActions is the interaction half of a browser session. Every method
// blocks until the action completes or ctx expires; ctx carries the per-action
// deadline.
type BrowserActions interface {
	// Navigate loads url and waits for network quiescence.
	Navigate(ctx context.Context, url string) error
	// Click waits for an actionable element matching selector and clicks it.
	Click(ctx context.Context, selector string) error
	// Fill sets the value of the field directly.
	Fill(ctx context.Context, selector, text string) error
	// Type clears the field and emits text key by key.
	Type(ctx context.Context, selector, text string) error
	// PressKey dispatches a single named key (e.g. "Enter") to the focused element.
	PressKey(ctx context.Context, key string) error
	// WaitForSelector blocks until selector reaches state or timeout elapses.
	WaitForSelector(ctx context.Context, selector string, state SelectorState, timeout time.Duration) error
	// ReadText returns the rendered text of the first element matching selector.
	ReadText(ctx context.Context, selector string) (string, error)
	// Screenshot writes a full-page PNG to path.
	Screenshot(ctx context.Context, path string) error
}

// EventSource is the passive half of a browser session. Handlers are invoked
// from the session's event loop, which may run concurrently with any action.
type EventSource interface {
	OnConsoleMessage(func(ConsoleMessage))
	OnUncaughtException(func(Exception))
	OnRequestFailed(func(FailedRequest))
	OnResponse(func(Response))
}

// BrowserSession is one scoped browser tab serving exactly one run.
//
//go:generate mockery --name BrowserSession --output ../../internal/mocks --outpkg mocks
type BrowserSession interface {
	BrowserActions
	EventSource
	// Close releases the tab and its browser process. It is safe to call more
	// than once.
	Close(ctx context.Context) error
}

// SessionFactory acquires a fresh browser session.
type SessionFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}

// -- Persistence Interfaces --

// RunStore persists finished run summaries.
type RunStore interface {
	SaveRun(ctx context.Context, summary *RunSummary) error
}
