// internal/host/completion/monitor.go
package completion

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/bus"
	"github.com/xkilldash9x/ghostpay/internal/config"
)

// Publisher is the part of the host bus the monitor needs.
type Publisher interface {
	Post(ctx context.Context, topic bus.Topic, payload interface{}) error
}

// Monitor watches post-load URLs of the current payment attempt and fires at most once per
// attempt when one of them carries the success keyword.
type Monitor struct {
	keyword   string
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	attemptID string
	fc        schemas.FillContext
	active    bool
	fired     bool
}

// New creates a Monitor. publisher may be nil.
func New(cfg config.CompletionConfig, publisher Publisher, logger *zap.Logger) *Monitor {
	return &Monitor{
		keyword:   strings.ToLower(cfg.SuccessKeyword),
		publisher: publisher,
		logger:    logger.Named("completion"),
		now:       time.Now,
	}
}

// Begin starts watching a new attempt and forgets the previous one.
func (m *Monitor) Begin(attemptID string, fc schemas.FillContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attemptID = attemptID
	m.fc = fc
	m.active = true
	m.fired = false
}

// End stops watching. Later navigations are ignored until the next Begin.
func (m *Monitor) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
}

// Observe handles one navigation state change. It returns the completion it raised, if any.
func (m *Monitor) Observe(ctx context.Context, url string) (schemas.Completion, bool) {
	if m.keyword == "" || !strings.Contains(strings.ToLower(url), m.keyword) {
		return schemas.Completion{}, false
	}

	m.mu.Lock()
	if !m.active || m.fired {
		m.mu.Unlock()
		return schemas.Completion{}, false
	}
	m.fired = true
	c := schemas.Completion{
		AttemptID: m.attemptID,
		URL:       url,
		Transaction: schemas.TransactionRecord{
			BankName:  m.fc.Card.BankName,
			Amount:    m.fc.Amount,
			Timestamp: m.now().UTC(),
		},
	}
	m.mu.Unlock()

	m.logger.Info("Payment completed.",
		zap.String("attempt", c.AttemptID),
		zap.String("bank", c.Transaction.BankName),
		zap.String("amount", c.Transaction.Amount))

	if m.publisher != nil {
		if err := m.publisher.Post(ctx, bus.TopicCompletion, c); err != nil {
			m.logger.Warn("Could not publish completion.", zap.Error(err))
		}
	}
	return c, true
}
