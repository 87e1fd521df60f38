// internal/browser/stealth/stealth.go
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/internal/config"
)

const languagesPlaceholder = "/*{{LANGUAGES}}*/"

//go:embed evasions.js
var evasionsTemplate string

// Persona defines the browser characteristics to emulate. Empty fields are left alone.
type Persona struct {
	UserAgent string
	Languages []string
	Timezone  string
	Locale    string
}

// PersonaFromConfig reads the persona overrides of the browser section.
func PersonaFromConfig(cfg config.BrowserConfig) Persona {
	return Persona{
		UserAgent: cfg.UserAgent,
		Languages: cfg.Languages,
		Timezone:  cfg.Timezone,
		Locale:    cfg.Locale,
	}
}

// Script renders the evasions for p.
func Script(p Persona) (string, error) {
	langs := p.Languages
	if langs == nil {
		langs = []string{}
	}
	raw, err := json.Marshal(langs)
	if err != nil {
		return "", fmt.Errorf("stealth: encode languages: %w", err)
	}
	return strings.Replace(evasionsTemplate, languagesPlaceholder, string(raw), 1), nil
}

// AcceptLanguage builds the header value for languages, e.g. "en-IN,en;q=0.9".
func AcceptLanguage(languages []string) string {
	var b strings.Builder
	for i, l := range languages {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(l)
		if i > 0 {
			q := 1.0 - 0.1*float64(i)
			if q < 0.1 {
				q = 0.1
			}
			fmt.Fprintf(&b, ";q=%.1f", q)
		}
	}
	return b.String()
}

// Apply constructs the CDP actions that make the payment view look like a regular browser.
func Apply(p Persona, logger *zap.Logger) (chromedp.Tasks, error) {
	script, err := Script(p)
	if err != nil {
		return nil, err
	}
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("locale", p.Locale),
		zap.String("timezone", p.Timezone),
	)

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}
	if p.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(p.UserAgent))
	}
	if p.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.Timezone))
	}
	if p.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(p.Locale))
	}
	if len(p.Languages) > 0 {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": AcceptLanguage(p.Languages),
		}))
	}
	return tasks, nil
}
