// internal/generation/generation.go
package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrStale is returned by a Guard once its generation has been superseded. It marks a
// cancelled run, not a failure.
var ErrStale = errors.New("generation: run superseded")

// Generation identifies one automation run. Zero is never issued.
type Generation uint64

// Token hands out monotonically increasing generations. Only the most recent one is current.
type Token struct {
	current atomic.Uint64
}

// Next starts a new generation and invalidates every earlier one.
func (t *Token) Next() Generation {
	return Generation(t.current.Add(1))
}

// Current returns the generation in effect.
func (t *Token) Current() Generation {
	return Generation(t.current.Load())
}

// IsCurrent reports whether g is still the generation in effect.
func (t *Token) IsCurrent(g Generation) bool {
	return g != 0 && t.Current() == g
}

// Invalidate retires the current generation without starting a replacement run.
func (t *Token) Invalidate() {
	t.current.Add(1)
}

// Sleeper suspends the caller. Real time in production, recorded time in tests.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// Clock sleeps on the wall clock and wakes early when ctx is done.
type Clock struct{}

func (Clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Guard ties a run to its generation. Every suspension point of a run goes through
// Sleep, so a resumption belonging to a superseded run returns ErrStale instead of acting.
type Guard struct {
	token   *Token
	gen     Generation
	sleeper Sleeper
}

// NewGuard binds gen to token. A nil sleeper means Clock.
func NewGuard(token *Token, gen Generation, sleeper Sleeper) *Guard {
	if sleeper == nil {
		sleeper = Clock{}
	}
	return &Guard{token: token, gen: gen, sleeper: sleeper}
}

// Generation returns the generation this guard protects.
func (g *Guard) Generation() Generation { return g.gen }

// Check returns ctx.Err() or ErrStale when the run must stop.
func (g *Guard) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.token.IsCurrent(g.gen) {
		return ErrStale
	}
	return nil
}

// Sleep suspends for d and then rechecks the generation.
func (g *Guard) Sleep(ctx context.Context, d time.Duration) error {
	if err := g.Check(ctx); err != nil {
		return err
	}
	if err := g.sleeper.Sleep(ctx, d); err != nil {
		return err
	}
	return g.Check(ctx)
}

// IsCancellation reports whether err ends a run without being a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrStale) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
