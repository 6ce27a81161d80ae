// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultQuietPeriod       = 500 * time.Millisecond
	stabilizeBudget          = 30 * time.Second
	closeBudget              = 10 * time.Second
)

// Session is one browser process with one tab, serving a single run.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	// allocCancel shuts the browser process down.
	allocCancel context.CancelFunc

	navigationTimeout time.Duration
	quietPeriod       time.Duration

	*Listener

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.BrowserSession = (*Session)(nil)

// newSession wraps an already-connected tab context.
func newSession(tabCtx context.Context, cancel, allocCancel context.CancelFunc, runCfg config.RunConfig, logger *zap.Logger) *Session {
	sessionID := uuid.New().String()
	sessionLogger := logger.With(zap.String("session_id", sessionID))

	s := &Session{
		id:                sessionID,
		ctx:               tabCtx,
		cancel:            cancel,
		allocCancel:       allocCancel,
		logger:            sessionLogger,
		navigationTimeout: runCfg.NavigationTimeout,
		quietPeriod:       runCfg.NetworkQuietPeriod,
		Listener:          NewListener(tabCtx, sessionLogger),
	}
	if s.navigationTimeout <= 0 {
		s.navigationTimeout = defaultNavigationTimeout
	}
	if s.quietPeriod <= 0 {
		s.quietPeriod = defaultQuietPeriod
	}
	return s
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Close stops event delivery, closes the tab and kills the browser. The
// caller's context only bounds the graceful part; the process is always
// released.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.Listener.Stop()

	done := make(chan error, 1)
	go func() {
		// chromedp.Cancel closes the browser gracefully when this tab owns it.
		done <- chromedp.Cancel(Detach(s.ctx))
	}()

	timer := time.NewTimer(closeBudget)
	defer timer.Stop()
	var closeErr error
	select {
	case closeErr = <-done:
	case <-ctx.Done():
		closeErr = ctx.Err()
	case <-timer.C:
		closeErr = fmt.Errorf("browser did not close within %s", closeBudget)
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	if closeErr != nil {
		s.logger.Debug("Browser did not shut down cleanly.", zap.Error(closeErr))
		return fmt.Errorf("failed to close browser session: %w", closeErr)
	}
	return nil
}

// stabilize waits for the page state to settle (DOM ready and network idle).
// Only cancellation of ctx is reported; a page that never settles is not an
// error.
func (s *Session) stabilize(ctx context.Context) error {
	stabCtx, cancel := context.WithTimeout(ctx, stabilizeBudget)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	if err := s.Listener.WaitNetworkIdle(stabCtx, s.quietPeriod); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("Network idle wait failed during stabilization.", zap.Error(err))
	}
	return nil
}

// runActions executes chromedp actions bounded by both the session lifetime
// and the caller's context.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}
