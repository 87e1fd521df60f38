// internal/host/navigation/policy.go
package navigation

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/config"
)

// ErrNoHandler means the OS has no application registered for the URL.
var ErrNoHandler = errors.New("navigation: no handler for url")

// Dispatcher hands a URL to the operating system.
type Dispatcher interface {
	Open(ctx context.Context, url string) error
}

// Notifier surfaces a user-visible message.
type Notifier interface {
	Notify(ctx context.Context, notice schemas.Notice)
}

// Policy decides, for every outbound navigation, whether it stays in the page.
type Policy struct {
	schemes    []string
	notFound   string
	dispatcher Dispatcher
	notifier   Notifier
	logger     *zap.Logger
	attempt    func() string
}

// NewPolicy creates a Policy. attempt reports the current payment attempt id for notices
// and may be nil.
func NewPolicy(cfg config.NavigationConfig, dispatcher Dispatcher, notifier Notifier, logger *zap.Logger, attempt func() string) *Policy {
	schemes := make([]string, 0, len(cfg.ExternalSchemes))
	for _, s := range cfg.ExternalSchemes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			schemes = append(schemes, s)
		}
	}
	msg := cfg.AppNotFoundMessage
	if msg == "" {
		msg = "App not found"
	}
	if attempt == nil {
		attempt = func() string { return "" }
	}
	return &Policy{
		schemes:    schemes,
		notFound:   msg,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger.Named("navigation"),
		attempt:    attempt,
	}
}

// Classify is pure: a URL starting with a registered external scheme prefix is an external
// intent, anything else stays in the page. The comparison ignores case.
func (p *Policy) Classify(url string) schemas.NavigationEvent {
	lowered := strings.ToLower(strings.TrimSpace(url))
	for _, s := range p.schemes {
		if strings.HasPrefix(lowered, s) {
			return schemas.NavigationEvent{URL: url, Classification: schemas.ClassExternalIntent}
		}
	}
	return schemas.NavigationEvent{URL: url, Classification: schemas.ClassInPage}
}

// Decide classifies url and reports whether the in-page navigation may proceed. External
// intents are always suppressed and dispatched; a failed dispatch raises the app-not-found
// notice and nothing else.
func (p *Policy) Decide(ctx context.Context, url string) bool {
	ev := p.Classify(url)
	if ev.Classification == schemas.ClassInPage {
		return true
	}

	p.logger.Info("Dispatching external intent.", zap.String("scheme", scheme(url)))
	if err := p.dispatcher.Open(ctx, url); err != nil {
		p.logger.Warn("External dispatch failed.", zap.String("scheme", scheme(url)), zap.Error(err))
		if p.notifier != nil {
			p.notifier.Notify(ctx, schemas.Notice{AttemptID: p.attempt(), Message: p.notFound, URL: url})
		}
	}
	return false
}

// scheme keeps query strings, which can carry payee details, out of the logs.
func scheme(url string) string {
	if i := strings.Index(url, ":"); i > 0 {
		return strings.ToLower(url[:i])
	}
	return ""
}
