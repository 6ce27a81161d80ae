// internal/browser/allocator.go
package browser

import (
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/tripwire-cli/internal/config"
)

// launchFlags returns the Chrome command line flags for cfg, on top of the
// chromedp defaults. Entries in cfg.Args win over the computed ones.
func launchFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                 cfg.Headless,
		"hide-scrollbars":          cfg.Headless,
		"mute-audio":               cfg.Headless,
		"no-sandbox":               true,
		"disable-gpu":              true,
		"disable-dev-shm-usage":    true,
		"enable-automation":        true,
		"no-first-run":             true,
		"no-default-browser-check": true,
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
	}

	// Args accepts both "--flag" and "--flag=value".
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for one browser launch.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := launchFlags(cfg)
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, chromedp.Flag(k, flags[k]))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}
