// internal/browser/factory.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
)

const defaultLaunchTimeout = 45 * time.Second

// Factory launches one fresh browser per session.
type Factory struct {
	browserCfg config.BrowserConfig
	runCfg     config.RunConfig
	logger     *zap.Logger
}

var _ schemas.SessionFactory = (*Factory)(nil)

// NewFactory creates a session factory for the given browser and run settings.
func NewFactory(browserCfg config.BrowserConfig, runCfg config.RunConfig, logger *zap.Logger) *Factory {
	return &Factory{
		browserCfg: browserCfg,
		runCfg:     runCfg,
		logger:     logger.Named("browser"),
	}
}

// NewSession starts Chrome, opens a tab and begins listening for events
// before returning. ctx bounds the launch only; the browser lives until
// Close.
func (f *Factory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	launchTimeout := f.browserCfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = defaultLaunchTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(f.browserCfg)...)

	var ctxOpts []chromedp.ContextOption
	if f.browserCfg.Debug {
		sugar := f.logger.Named("cdp").Sugar()
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf), chromedp.WithErrorf(sugar.Errorf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	s := newSession(tabCtx, tabCancel, allocCancel, f.runCfg, f.logger)

	launchCtx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()

	start := time.Now()
	// Chrome is bound to the context of the first Run, so it runs on the
	// tab context without a deadline.
	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(tabCtx) }()
	select {
	case err := <-launched:
		if err != nil {
			tabCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-launchCtx.Done():
		tabCancel()
		allocCancel()
		<-launched
		return nil, fmt.Errorf("browser did not start within %s: %w", launchTimeout, launchCtx.Err())
	}
	if err := s.Listener.Start(launchCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start event listener: %w", err)
	}

	f.logger.Info("Browser session started.",
		zap.String("session_id", s.ID()),
		zap.Bool("headless", f.browserCfg.Headless),
		zap.Duration("launch", time.Since(start)))
	return s, nil
}
