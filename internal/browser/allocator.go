// internal/browser/allocator.go
package browser

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/ghostpay/internal/config"
)

// goos is overridden in tests.
var goos = runtime.GOOS

// Flag is one Chrome command-line switch. Value is a string or a bool; false removes the switch.
type Flag struct {
	Name  string
	Value interface{}
}

// AllocatorFlags translates the browser configuration into Chrome switches applied on top
// of chromedp's defaults.
func AllocatorFlags(cfg config.BrowserConfig) []Flag {
	flags := []Flag{
		{Name: "headless", Value: cfg.Headless},
		// Drop the automation banner and navigator.webdriver.
		{Name: "enable-automation", Value: false},
		{Name: "disable-blink-features", Value: "AutomationControlled"},
		{Name: "disable-extensions", Value: true},
		{Name: "disable-gpu", Value: cfg.Headless},
	}

	if cfg.DisableCache {
		flags = append(flags,
			Flag{Name: "disk-cache-size", Value: "0"},
			Flag{Name: "media-cache-size", Value: "0"},
		)
	}
	if cfg.IgnoreTLSErrors {
		flags = append(flags,
			Flag{Name: "ignore-certificate-errors", Value: true},
			Flag{Name: "allow-insecure-localhost", Value: true},
		)
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		flags = append(flags, Flag{Name: "window-size", Value: fmt.Sprintf("%d,%d", w, h)})
	}
	if len(cfg.Languages) > 0 {
		flags = append(flags, Flag{Name: "lang", Value: cfg.Languages[0]})
	}

	// Custom arguments from config.yaml win over everything above.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(strings.TrimSpace(parts[0]), "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, Flag{Name: name, Value: parts[1]})
		} else {
			flags = append(flags, Flag{Name: name, Value: true})
		}
	}

	// Flags required for running inside containers.
	if goos == "linux" {
		flags = append(flags,
			Flag{Name: "no-sandbox", Value: true},
			Flag{Name: "disable-dev-shm-usage", Value: true},
		)
	}
	return flags
}

// DefaultAllocatorOptions returns the exec allocator options for cfg.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range AllocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}
