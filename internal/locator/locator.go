// internal/locator/locator.go
package locator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/generation"
)

// ErrNotFound means no candidate of a role produced a usable element within the retry
// budget. Callers skip the field and carry on.
var ErrNotFound = errors.New("locator: field not found")

// Locator resolves semantic roles to elements.
type Locator struct {
	cfg    config.LocatorConfig
	logger *zap.Logger
}

// New creates a Locator.
func New(cfg config.LocatorConfig, logger *zap.Logger) *Locator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Locator{cfg: cfg, logger: logger.Named("locator")}
}

// Candidates returns the ordered candidate list of role.
func (l *Locator) Candidates(role schemas.Role) []dom.Candidate {
	configured := l.cfg.CandidatesFor(role)
	out := make([]dom.Candidate, len(configured))
	for i, c := range configured {
		out[i] = dom.Candidate(c)
	}
	return out
}

// Resolve returns the first visible, enabled element matched by role's candidates, trying
// candidates in order. When nothing matches, or a scan fails because the page is still
// rendering, it waits the backoff and rescans, for at most MaxAttempts scans in total. The
// wait goes through guard, so a superseded run stops here.
func (l *Locator) Resolve(ctx context.Context, doc dom.Document, guard *generation.Guard, role schemas.Role) (dom.Element, error) {
	candidates := l.Candidates(role)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates configured for %s", ErrNotFound, role)
	}

	var lastErr error
	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		if err := guard.Check(ctx); err != nil {
			return nil, err
		}

		el, err := l.scan(ctx, doc, candidates)
		if err != nil {
			if generation.IsCancellation(err) {
				return nil, err
			}
			lastErr = err
			l.logger.Debug("Scan failed; retrying.",
				zap.String("role", string(role)),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if el != nil {
			l.logger.Debug("Resolved field.",
				zap.String("role", string(role)),
				zap.Int("attempt", attempt),
				zap.String("element", dom.Describe(el)))
			return el, nil
		}

		if attempt < l.cfg.MaxAttempts {
			if err := guard.Sleep(ctx, l.cfg.Backoff); err != nil {
				return nil, err
			}
		}
	}

	l.logger.Debug("Field not found.", zap.String("role", string(role)), zap.Int("attempts", l.cfg.MaxAttempts))
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s after %d attempts (last scan error: %v)", ErrNotFound, role, l.cfg.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrNotFound, role, l.cfg.MaxAttempts)
}

func (l *Locator) scan(ctx context.Context, doc dom.Document, candidates []dom.Candidate) (dom.Element, error) {
	for _, c := range candidates {
		els, err := doc.FindAll(ctx, c.XPath())
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			ok, err := dom.Usable(ctx, el)
			if err != nil {
				return nil, err
			}
			if ok {
				return el, nil
			}
		}
	}
	return nil, nil
}

// FindUsable returns every visible, enabled element matching c, in document order. It does
// not retry.
func FindUsable(ctx context.Context, doc dom.Document, c dom.Candidate) ([]dom.Element, error) {
	els, err := doc.FindAll(ctx, c.XPath())
	if err != nil {
		return nil, err
	}
	return dom.FilterUsable(ctx, els)
}
