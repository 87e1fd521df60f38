// internal/engine/engine.go
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/diagnostics"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/filler"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/humanoid"
	"github.com/xkilldash9x/ghostpay/internal/locator"
	"github.com/xkilldash9x/ghostpay/internal/observability"
	"github.com/xkilldash9x/ghostpay/internal/poller"
)

// Engine is the content-context runtime. It owns the generation token: starting a run
// supersedes whatever run came before it.
type Engine struct {
	logger  *zap.Logger
	token   *generation.Token
	sleeper generation.Sleeper
	filler  *filler.Filler
	poller  *poller.Poller
}

// Option customizes an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	sleeper generation.Sleeper
	token   *generation.Token
	seed    *int64
}

// WithSleeper replaces wall-clock sleeping.
func WithSleeper(s generation.Sleeper) Option {
	return func(o *engineOptions) { o.sleeper = s }
}

// WithToken shares a generation token with the host.
func WithToken(t *generation.Token) Option {
	return func(o *engineOptions) { o.token = t }
}

// WithSeed makes keystroke and poll jitter deterministic.
func WithSeed(seed int64) Option {
	return func(o *engineOptions) { o.seed = &seed }
}

// New wires locator, simulator, filler and poller from cfg.
func New(cfg config.Interface, emitter diagnostics.Emitter, logger *zap.Logger, opts ...Option) *Engine {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.token == nil {
		o.token = &generation.Token{}
	}
	if o.sleeper == nil {
		o.sleeper = generation.Clock{}
	}

	loc := locator.New(cfg.Locator(), logger)
	var sim *humanoid.Simulator
	var pol *poller.Poller
	if o.seed != nil {
		sim = humanoid.NewWithSeed(cfg.Humanoid(), logger, *o.seed)
		pol = poller.NewWithSeed(cfg.Poller(), emitter, logger, *o.seed)
	} else {
		sim = humanoid.New(cfg.Humanoid(), logger)
		pol = poller.New(cfg.Poller(), emitter, logger)
	}

	return &Engine{
		logger:  logger.Named("engine"),
		token:   o.token,
		sleeper: o.sleeper,
		filler:  filler.New(cfg.Filler(), loc, sim, emitter, logger),
		poller:  pol,
	}
}

// Token returns the generation token runs are checked against.
func (e *Engine) Token() *generation.Token { return e.token }

// Run starts a new generation and runs the filler and the poller against doc. onFilled,
// if set, receives the filler's report once it reaches DONE. Run returns when the filler has
// finished and the poller has stopped, which happens when ctx ends or a newer run starts.
// Cancellation is not an error.
func (e *Engine) Run(ctx context.Context, doc dom.Document, fc schemas.FillContext, onFilled func(filler.Report)) error {
	gen := e.token.Next()
	return e.RunGeneration(ctx, doc, gen, fc, onFilled)
}

// RunGeneration runs for a generation the host already issued.
func (e *Engine) RunGeneration(ctx context.Context, doc dom.Document, gen generation.Generation, fc schemas.FillContext, onFilled func(filler.Report)) error {
	guard := generation.NewGuard(e.token, gen, e.sleeper)
	shared := lockedDocument{mu: &sync.Mutex{}, doc: doc}
	logger := e.logger.With(zap.Uint64("generation", uint64(gen)), observability.Card(fc.Card.Number))
	logger.Info("Automation run started.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report, err := e.filler.Run(gctx, shared, guard, fc)
		if err != nil {
			return err
		}
		logger.Info("Fill finished.",
			zap.String("layout", string(report.Layout)),
			zap.Int("filled", len(report.Filled)),
			zap.Int("skipped", len(report.Skipped)))
		if onFilled != nil {
			onFilled(report)
		}
		return nil
	})
	g.Go(func() error {
		return e.poller.Run(gctx, shared, guard)
	})

	err := g.Wait()
	if generation.IsCancellation(err) {
		logger.Info("Automation run ended.", zap.String("reason", err.Error()))
		return nil
	}
	return err
}
