// internal/diagnostics/receiver.go
package diagnostics

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/bus"
	"github.com/xkilldash9x/ghostpay/internal/config"
)

// Publisher is the part of the host bus the receiver needs.
type Publisher interface {
	Post(ctx context.Context, topic bus.Topic, payload interface{}) error
}

// Receiver is the host end of the channel. It logs every accepted message and republishes
// it on the bus. A page that floods the channel is throttled, not trusted.
type Receiver struct {
	logger     *zap.Logger
	limiter    *rate.Limiter
	publisher  Publisher
	suppressed uint64
}

// NewReceiver creates a Receiver. publisher may be nil.
func NewReceiver(cfg config.DiagnosticsConfig, logger *zap.Logger, publisher Publisher) *Receiver {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Receiver{
		logger:    logger.Named("diagnostics"),
		limiter:   rate.NewLimiter(limit, burst),
		publisher: publisher,
	}
}

// Run handles payloads until ctx is done or messages is closed.
func (r *Receiver) Run(ctx context.Context, messages <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			r.flushSuppressed()
			return nil
		case payload, ok := <-messages:
			if !ok {
				r.flushSuppressed()
				return nil
			}
			r.Handle(ctx, payload)
		}
	}
}

// Handle processes one payload. It reports whether the message was accepted.
func (r *Receiver) Handle(ctx context.Context, payload []byte) bool {
	msg, err := Decode(payload)
	if err != nil {
		r.logger.Debug("Discarding malformed diagnostic.", zap.Error(err), zap.Int("bytes", len(payload)))
		return false
	}
	if msg.Type != schemas.KindLog {
		r.logger.Debug("Discarding diagnostic of unknown kind.", zap.String("kind", string(msg.Type)))
		return false
	}
	if !r.limiter.Allow() {
		r.suppressed++
		return false
	}
	r.flushSuppressed()

	r.logger.Info(msg.Msg, zap.String("kind", string(msg.Type)))
	if r.publisher != nil {
		if err := r.publisher.Post(ctx, bus.TopicLog, msg); err != nil {
			r.logger.Debug("Could not publish diagnostic.", zap.Error(err))
		}
	}
	return true
}

func (r *Receiver) flushSuppressed() {
	if r.suppressed == 0 {
		return
	}
	r.logger.Warn("Suppressed diagnostics over rate limit.", zap.Uint64("count", r.suppressed))
	r.suppressed = 0
}
