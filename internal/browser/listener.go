// internal/browser/listener.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// pendingRequest is what the listener remembers about a request until it
// finishes or fails.
type pendingRequest struct {
	URL    string
	Method string
}

// Listener turns CDP events for one tab into the browser-agnostic payloads
// of schemas.EventSource and tracks in-flight requests for network idle
// waits.
type Listener struct {
	logger *zap.Logger

	// The context for the tab this listener is attached to.
	sessionCtx     context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	lock     sync.RWMutex
	inflight map[network.RequestID]pendingRequest

	subsMu      sync.RWMutex
	onConsole   []func(schemas.ConsoleMessage)
	onException []func(schemas.Exception)
	onFailed    []func(schemas.FailedRequest)
	onResponse  []func(schemas.Response)

	isStarted bool
}

// NewListener creates a listener for the tab carried by sessionCtx.
func NewListener(sessionCtx context.Context, logger *zap.Logger) *Listener {
	return &Listener{
		sessionCtx: sessionCtx,
		logger:     logger.Named("listener"),
		inflight:   make(map[network.RequestID]pendingRequest),
	}
}

// Start installs the CDP event callback and enables the network and runtime
// domains. Calling it twice is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.isStarted {
		return nil
	}

	l.listenerCtx, l.cancelListener = context.WithCancel(l.sessionCtx)
	chromedp.ListenTarget(l.listenerCtx, l.handleEvent)

	runCtx, cancel := CombineContext(l.sessionCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, network.Enable(), runtime.Enable()); err != nil {
		l.cancelListener()
		return fmt.Errorf("failed to enable event domains: %w", err)
	}

	l.isStarted = true
	l.logger.Debug("Listener started.")
	return nil
}

// Stop removes the CDP callback. Subscribers receive nothing afterwards.
func (l *Listener) Stop() {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.cancelListener != nil {
		l.cancelListener()
		l.cancelListener = nil
	}
	l.isStarted = false
}

func (l *Listener) OnConsoleMessage(fn func(schemas.ConsoleMessage)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.onConsole = append(l.onConsole, fn)
}

func (l *Listener) OnUncaughtException(fn func(schemas.Exception)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.onException = append(l.onException, fn)
}

func (l *Listener) OnRequestFailed(fn func(schemas.FailedRequest)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.onFailed = append(l.onFailed, fn)
}

func (l *Listener) OnResponse(fn func(schemas.Response)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.onResponse = append(l.onResponse, fn)
}

// WaitNetworkIdle polls until no request has been in flight for quietPeriod.
func (l *Listener) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	if quietPeriod <= 0 {
		return nil
	}
	ticker := time.NewTicker(quietPeriod / 2)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("WaitNetworkIdle aborted due to context cancellation.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			count := l.InflightCount()
			if count > 0 {
				lastActivity = time.Now()
				l.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", count))
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}

// InflightCount returns the number of requests started but not yet finished.
func (l *Listener) InflightCount() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return len(l.inflight)
}

// handleEvent runs on the chromedp event loop and must not block on CDP calls.
func (l *Listener) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		l.handleRequestWillBeSent(e)
	case *network.EventResponseReceived:
		l.handleResponseReceived(e)
	case *network.EventLoadingFinished:
		l.handleLoadingFinished(e)
	case *network.EventLoadingFailed:
		l.handleLoadingFailed(e)
	case *runtime.EventConsoleAPICalled:
		l.dispatchConsole(consoleMessageFromEvent(e))
	case *runtime.EventExceptionThrown:
		if msg, ok := exceptionFromEvent(e); ok {
			l.dispatchException(msg)
		}
	}
}

// -- Network Handlers --

func (l *Listener) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	if e.Request == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	// A redirect reuses the request ID; the new leg replaces the old one.
	l.inflight[e.RequestID] = pendingRequest{URL: e.Request.URL, Method: e.Request.Method}
}

func (l *Listener) handleResponseReceived(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}
	l.dispatchResponse(schemas.Response{
		URL:        e.Response.URL,
		Status:     int(e.Response.Status),
		StatusText: e.Response.StatusText,
		Time:       time.Now().UTC(),
	})
}

func (l *Listener) handleLoadingFinished(e *network.EventLoadingFinished) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.inflight, e.RequestID)
}

func (l *Listener) handleLoadingFailed(e *network.EventLoadingFailed) {
	l.lock.Lock()
	req, ok := l.inflight[e.RequestID]
	delete(l.inflight, e.RequestID)
	l.lock.Unlock()

	if !ok {
		l.logger.Debug("Loading failed for an unknown request.", zap.String("request_id", string(e.RequestID)))
	}
	l.dispatchFailed(schemas.FailedRequest{
		URL:     req.URL,
		Method:  req.Method,
		Failure: failureText(e),
		Time:    time.Now().UTC(),
	})
}

// -- Dispatch --

func (l *Listener) dispatchConsole(msg schemas.ConsoleMessage) {
	l.subsMu.RLock()
	subs := l.onConsole
	l.subsMu.RUnlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (l *Listener) dispatchException(exc schemas.Exception) {
	l.subsMu.RLock()
	subs := l.onException
	l.subsMu.RUnlock()
	for _, fn := range subs {
		fn(exc)
	}
}

func (l *Listener) dispatchFailed(req schemas.FailedRequest) {
	l.subsMu.RLock()
	subs := l.onFailed
	l.subsMu.RUnlock()
	for _, fn := range subs {
		fn(req)
	}
}

func (l *Listener) dispatchResponse(resp schemas.Response) {
	l.subsMu.RLock()
	subs := l.onResponse
	l.subsMu.RUnlock()
	for _, fn := range subs {
		fn(resp)
	}
}

// -- Conversion Helpers --

func consoleMessageFromEvent(e *runtime.EventConsoleAPICalled) schemas.ConsoleMessage {
	var text strings.Builder
	for i, arg := range e.Args {
		if arg == nil {
			continue
		}
		if i > 0 {
			text.WriteString(" ")
		}
		text.WriteString(remoteObjectText(arg))
	}

	msg := schemas.ConsoleMessage{
		Level: string(e.Type),
		Text:  text.String(),
		Time:  time.Now().UTC(),
	}
	if e.Timestamp != nil {
		msg.Time = e.Timestamp.Time().UTC()
	}
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		frame := e.StackTrace.CallFrames[0]
		msg.Location = fmt.Sprintf("%s:%d:%d", frame.URL, frame.LineNumber+1, frame.ColumnNumber+1)
	}
	return msg
}

// remoteObjectText renders a console argument the way the devtools console
// would print it on one line.
func remoteObjectText(arg *runtime.RemoteObject) string {
	if len(arg.Value) > 0 {
		var val interface{}
		if jsoniter.Unmarshal(arg.Value, &val) == nil {
			if s, ok := val.(string); ok {
				return s
			}
			return fmt.Sprintf("%v", val)
		}
	}
	if arg.UnserializableValue != "" {
		return string(arg.UnserializableValue)
	}
	if arg.Description != "" {
		return arg.Description
	}
	return fmt.Sprintf("[%s]", arg.Type)
}

func exceptionFromEvent(e *runtime.EventExceptionThrown) (schemas.Exception, bool) {
	if e.ExceptionDetails == nil {
		return schemas.Exception{}, false
	}
	// The description carries the stack; its first line is the message.
	text := e.ExceptionDetails.Text
	if exc := e.ExceptionDetails.Exception; exc != nil && exc.Description != "" {
		text, _, _ = strings.Cut(exc.Description, "\n")
	}
	out := schemas.Exception{Message: text, Time: time.Now().UTC()}
	if e.Timestamp != nil {
		out.Time = e.Timestamp.Time().UTC()
	}
	return out, true
}

func failureText(e *network.EventLoadingFailed) string {
	if e.Canceled {
		if e.ErrorText != "" {
			return e.ErrorText
		}
		return "net::ERR_ABORTED"
	}
	if e.BlockedReason != "" {
		return fmt.Sprintf("%s (blocked: %s)", e.ErrorText, e.BlockedReason)
	}
	return e.ErrorText
}
