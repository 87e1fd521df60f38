// internal/poller/poller.go
package poller

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/diagnostics"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/generation"
)

// Poller periodically clicks the element offering the alternate payment path. Clicking an
// already active tab changes nothing, so it keeps going for as long as its run is current.
type Poller struct {
	cfg     config.PollerConfig
	emitter diagnostics.Emitter
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Poller.
func New(cfg config.PollerConfig, emitter diagnostics.Emitter, logger *zap.Logger) *Poller {
	return NewWithSeed(cfg, emitter, logger, time.Now().UnixNano())
}

// NewWithSeed creates a Poller with deterministic intervals.
func NewWithSeed(cfg config.PollerConfig, emitter diagnostics.Emitter, logger *zap.Logger, seed int64) *Poller {
	if emitter == nil {
		emitter = diagnostics.Nop
	}
	return &Poller{cfg: cfg, emitter: emitter, logger: logger.Named("poller"), rng: rand.New(rand.NewSource(seed))}
}

// Run ticks until ctx is done or the guard's generation is superseded, and returns the
// error that stopped it. A disabled poller returns nil at once.
func (p *Poller) Run(ctx context.Context, doc dom.Document, guard *generation.Guard) error {
	if !p.cfg.Enabled {
		return nil
	}
	clicks := 0
	for {
		if err := guard.Sleep(ctx, p.interval()); err != nil {
			p.logger.Debug("Poller stopped.", zap.Int("clicks", clicks), zap.Error(err))
			return err
		}
		clicked, err := p.Tick(ctx, doc)
		if err != nil {
			if generation.IsCancellation(err) {
				return err
			}
			p.logger.Debug("Poll tick failed.", zap.Error(err))
			continue
		}
		if clicked {
			clicks++
			if clicks == 1 {
				diagnostics.Emitf(p.emitter, "Activated %s option", p.cfg.Marker)
			}
		}
	}
}

// Tick scans once and clicks the first visible, enabled element carrying the marker.
func (p *Poller) Tick(ctx context.Context, doc dom.Document) (bool, error) {
	els, err := doc.FindAll(ctx, dom.ClickableWithText(p.cfg.Marker))
	if err != nil {
		return false, err
	}
	for _, el := range els {
		ok, err := dom.Usable(ctx, el)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if err := el.Click(ctx); err != nil {
			return false, err
		}
		p.logger.Debug("Clicked alternate path.", zap.String("element", dom.Describe(el)))
		return true, nil
	}
	return false, nil
}

// interval draws from [IntervalMin, IntervalMax].
func (p *Poller) interval() time.Duration {
	span := p.cfg.IntervalMax - p.cfg.IntervalMin
	if span <= 0 {
		return p.cfg.IntervalMin
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.IntervalMin + time.Duration(p.rng.Int63n(int64(span)+1))
}
