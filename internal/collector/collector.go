// Package collector records runtime diagnostics emitted by a browser session
// while a run is in progress.
package collector

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// Collector holds four append-only logs, one per signal category. Events are
// delivered on the browser's event goroutine while steps are awaited on
// another, so each log has its own lock.
type Collector struct {
	logger   *zap.Logger
	detached atomic.Bool

	consoleMu sync.Mutex
	console   []schemas.ConsoleError

	pageMu sync.Mutex
	page   []schemas.PageError

	httpMu sync.Mutex
	http   []schemas.HTTPError

	failMu sync.Mutex
	fail   []schemas.RequestFailure
}

// Attach subscribes a new Collector to src. It must be called before the
// first step runs so that nothing emitted during the run is missed.
func Attach(src schemas.EventSource, logger *zap.Logger) *Collector {
	c := &Collector{logger: logger.Named("collector")}
	src.OnConsoleMessage(c.onConsole)
	src.OnUncaughtException(c.onException)
	src.OnRequestFailed(c.onRequestFailed)
	src.OnResponse(c.onResponse)
	c.logger.Debug("Signal collector attached.")
	return c
}

// Detach stops recording. Events that arrive later are dropped.
func (c *Collector) Detach() {
	if c.detached.CompareAndSwap(false, true) {
		c.logger.Debug("Signal collector detached.")
	}
}

func (c *Collector) onConsole(m schemas.ConsoleMessage) {
	if c.detached.Load() || !strings.EqualFold(m.Level, "error") {
		return
	}
	rec := schemas.ConsoleError{Text: m.Text, Location: m.Location, ObservedAt: stamp(m.Time)}
	c.consoleMu.Lock()
	c.console = append(c.console, rec)
	c.consoleMu.Unlock()
}

func (c *Collector) onException(e schemas.Exception) {
	if c.detached.Load() {
		return
	}
	rec := schemas.PageError{Message: e.Message, ObservedAt: stamp(e.Time)}
	c.pageMu.Lock()
	c.page = append(c.page, rec)
	c.pageMu.Unlock()
}

func (c *Collector) onRequestFailed(r schemas.FailedRequest) {
	if c.detached.Load() {
		return
	}
	rec := schemas.RequestFailure{URL: r.URL, Method: r.Method, Failure: r.Failure, ObservedAt: stamp(r.Time)}
	c.failMu.Lock()
	c.fail = append(c.fail, rec)
	c.failMu.Unlock()
}

func (c *Collector) onResponse(r schemas.Response) {
	if c.detached.Load() || r.Status < 400 {
		return
	}
	rec := schemas.HTTPError{URL: r.URL, Status: r.Status, StatusText: r.StatusText, ObservedAt: stamp(r.Time)}
	c.httpMu.Lock()
	c.http = append(c.http, rec)
	c.httpMu.Unlock()
}

// Snapshot copies every log in arrival order. It may be called at any time;
// the copy does not alias the collector's storage.
func (c *Collector) Snapshot() schemas.RawSignals {
	var out schemas.RawSignals

	c.consoleMu.Lock()
	out.ConsoleErrors = append([]schemas.ConsoleError(nil), c.console...)
	c.consoleMu.Unlock()

	c.pageMu.Lock()
	out.PageErrors = append([]schemas.PageError(nil), c.page...)
	c.pageMu.Unlock()

	c.httpMu.Lock()
	out.HTTPErrors = append([]schemas.HTTPError(nil), c.http...)
	c.httpMu.Unlock()

	c.failMu.Lock()
	out.RequestFailures = append([]schemas.RequestFailure(nil), c.fail...)
	c.failMu.Unlock()

	return out
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
