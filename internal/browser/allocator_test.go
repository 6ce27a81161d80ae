// internal/browser/allocator_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/tripwire-cli/internal/config"
)

func TestLaunchFlags(t *testing.T) {
	t.Run("headless defaults", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{Headless: true})
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, true, flags["no-sandbox"])
		assert.Equal(t, true, flags["disable-gpu"])
		assert.NotContains(t, flags, "ignore-certificate-errors")
	})

	t.Run("headed", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{Headless: false})
		assert.Equal(t, false, flags["headless"])
		assert.Equal(t, false, flags["hide-scrollbars"])
	})

	t.Run("ignore TLS errors", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{IgnoreTLSErrors: true})
		assert.Equal(t, true, flags["ignore-certificate-errors"])
	})

	t.Run("extra args override", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{
			Headless: true,
			Args:     []string{"--lang=de-DE", "--no-sandbox=false", "disable-extensions", "--"},
		})
		assert.Equal(t, "de-DE", flags["lang"])
		assert.Equal(t, "false", flags["no-sandbox"])
		assert.Equal(t, true, flags["disable-extensions"])
		assert.NotContains(t, flags, "")
	})
}

func TestAllocatorOptions(t *testing.T) {
	base := AllocatorOptions(config.BrowserConfig{Headless: true})
	assert.NotEmpty(t, base)

	full := AllocatorOptions(config.BrowserConfig{
		Headless:  true,
		ExecPath:  "/opt/chrome/chrome",
		UserAgent: "tripwire-test",
		Viewport:  config.ViewportConfig{Width: 1280, Height: 800},
	})
	// Exec path, window size and user agent each add one option.
	assert.Len(t, full, len(base)+3)
}
