// internal/humanoid/simulator.go
package humanoid

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/generation"
)

// ErrValueMismatch means the element did not end up holding the typed value, typically
// because the page re-rendered it mid-sequence and the handle went stale.
var ErrValueMismatch = errors.New("humanoid: value mismatch after fill")

// keystroke is the per-character event sequence the page's listeners expect.
var keystroke = []dom.EventType{dom.EventKeyDown, dom.EventKeyPress, dom.EventInput, dom.EventKeyUp, dom.EventChange}

// Simulator reproduces keyboard input on an element one character at a time.
type Simulator struct {
	cfg    config.HumanoidConfig
	logger *zap.Logger

	// mu guards rng.
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Simulator seeded from the clock.
func New(cfg config.HumanoidConfig, logger *zap.Logger) *Simulator {
	return NewWithSeed(cfg, logger, time.Now().UnixNano())
}

// NewWithSeed creates a Simulator with a deterministic jitter source.
func NewWithSeed(cfg config.HumanoidConfig, logger *zap.Logger, seed int64) *Simulator {
	if cfg.KeyDelayMax < cfg.KeyDelayMin {
		cfg.KeyDelayMax = cfg.KeyDelayMin
	}
	return &Simulator{
		cfg:    cfg,
		logger: logger.Named("humanoid"),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Type focuses el, clears it, types value character by character and blurs it. Typing the
// same value twice leaves the same final value. Every inter-key pause is a guarded
// suspension point.
func (s *Simulator) Type(ctx context.Context, guard *generation.Guard, el dom.Element, value string) error {
	if err := guard.Check(ctx); err != nil {
		return err
	}
	if err := el.Focus(ctx); err != nil {
		return fmt.Errorf("humanoid: focus: %w", err)
	}

	// Clear, and tell the page about it.
	if err := el.WriteValue(ctx, ""); err != nil {
		return fmt.Errorf("humanoid: clear: %w", err)
	}
	if err := el.DispatchEvent(ctx, dom.Event{Type: dom.EventInput}); err != nil {
		return fmt.Errorf("humanoid: clear: %w", err)
	}

	runes := []rune(value)
	for i, r := range runes {
		if err := s.typeCharacter(ctx, el, string(runes[:i+1]), string(r)); err != nil {
			return err
		}
		if i < len(runes)-1 {
			if err := guard.Sleep(ctx, s.keyDelay()); err != nil {
				return err
			}
		}
	}

	if err := el.Blur(ctx); err != nil {
		return fmt.Errorf("humanoid: blur: %w", err)
	}

	if err := Verify(ctx, el, value); err != nil {
		return err
	}
	s.logger.Debug("Typed value.", zap.String("element", dom.Describe(el)), zap.Int("chars", len(runes)))
	return nil
}

func (s *Simulator) typeCharacter(ctx context.Context, el dom.Element, typed, key string) error {
	if err := el.WriteValue(ctx, typed); err != nil {
		return fmt.Errorf("humanoid: write %q: %w", key, err)
	}
	for _, typ := range keystroke {
		ev := dom.Event{Type: typ}
		if typ != dom.EventInput && typ != dom.EventChange {
			ev.Key = key
		}
		if err := el.DispatchEvent(ctx, ev); err != nil {
			return fmt.Errorf("humanoid: dispatch %s: %w", typ, err)
		}
	}
	return nil
}

// keyDelay draws a uniform delay from [KeyDelayMin, KeyDelayMax].
func (s *Simulator) keyDelay() time.Duration {
	span := s.cfg.KeyDelayMax - s.cfg.KeyDelayMin
	if span <= 0 {
		return s.cfg.KeyDelayMin
	}
	s.mu.Lock()
	jitter := time.Duration(s.rng.Int63n(int64(span) + 1))
	s.mu.Unlock()
	return s.cfg.KeyDelayMin + jitter
}

// Verify checks that el is still attached and holds want.
func Verify(ctx context.Context, el dom.Element, want string) error {
	connected, err := el.IsConnected(ctx)
	if err != nil {
		return fmt.Errorf("humanoid: verify: %w", err)
	}
	if !connected {
		return fmt.Errorf("%w: element detached from document", ErrValueMismatch)
	}
	got, err := el.ReadValue(ctx)
	if err != nil {
		return fmt.Errorf("humanoid: verify: %w", err)
	}
	if got != want {
		return fmt.Errorf("%w: have %d chars, want %d", ErrValueMismatch, len([]rune(got)), len([]rune(want)))
	}
	return nil
}
