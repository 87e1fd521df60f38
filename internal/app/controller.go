// internal/app/controller.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/bus"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/observability"
)

// ErrNoAttempt is returned when an operation needs a payment attempt and none is running.
var ErrNoAttempt = errors.New("app: no payment attempt in progress")

// CardStore is the part of the vault the controller reads cards from and writes history to.
type CardStore interface {
	Card(ctx context.Context, id string) (schemas.CardRecord, error)
	AppendTransaction(ctx context.Context, tx schemas.TransactionRecord) error
}

// EventBus is the host bus as the controller uses it.
type EventBus interface {
	Post(ctx context.Context, topic bus.Topic, payload interface{}) error
	Subscribe(topics ...bus.Topic) (<-chan bus.Message, func())
	Acknowledge(bus.Message)
}

// AttemptTracker is implemented by the completion monitor.
type AttemptTracker interface {
	Begin(attemptID string, fc schemas.FillContext)
	End()
}

// PaymentRequest starts a payment. Empty Email or Phone fall back to the card's own.
type PaymentRequest struct {
	CardID string
	Amount string
	Email  string
	Phone  string
}

// Outcome is how an attempt ended.
type Outcome struct {
	Completed  bool
	Completion schemas.Completion
}

// Attempt is one payment run from BeginPayment until completion or cancel.
type Attempt struct {
	ID          string
	Generation  generation.Generation
	FillContext schemas.FillContext

	done    chan struct{}
	outcome Outcome
}

// Done is closed when the attempt ends.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Outcome is valid once Done is closed.
func (a *Attempt) Outcome() Outcome {
	<-a.done
	return a.outcome
}

// Controller owns the view state and the lifecycle of payment attempts. Only one attempt
// is current at a time; starting one supersedes the previous.
type Controller struct {
	store   CardStore
	events  EventBus
	tracker AttemptTracker
	token   *generation.Token
	logger  *zap.Logger
	newID   func() string

	mu      sync.Mutex
	view    schemas.ViewState
	attempt *Attempt
	notices []schemas.Notice
}

// New creates a Controller in the HOME view.
func New(store CardStore, events EventBus, tracker AttemptTracker, token *generation.Token, logger *zap.Logger) *Controller {
	return &Controller{
		store:   store,
		events:  events,
		tracker: tracker,
		token:   token,
		logger:  logger.Named("app"),
		newID:   uuid.NewString,
		view:    schemas.ViewHome,
	}
}

// View returns the screen currently shown.
func (c *Controller) View() schemas.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView switches between HOME, ADD and INSIGHTS. Leaving PAY cancels the attempt; PAY itself
// is entered only through BeginPayment.
func (c *Controller) SetView(v schemas.ViewState) error {
	switch v {
	case schemas.ViewHome, schemas.ViewAdd, schemas.ViewInsights:
	case schemas.ViewPay:
		return fmt.Errorf("app: the payment view is entered through BeginPayment")
	default:
		return fmt.Errorf("app: unknown view %q", v)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == schemas.ViewPay {
		c.endLocked(Outcome{})
	}
	c.view = v
	return nil
}

// BeginPayment builds the fill context for a stored card, issues a new generation and
// switches to PAY.
func (c *Controller) BeginPayment(ctx context.Context, req PaymentRequest) (*Attempt, error) {
	if err := schemas.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	card, err := c.store.Card(ctx, req.CardID)
	if err != nil {
		return nil, fmt.Errorf("app: load card: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt != nil {
		c.endLocked(Outcome{})
	}

	a := &Attempt{
		ID:          c.newID(),
		Generation:  c.token.Next(),
		FillContext: schemas.NewFillContext(card, req.Amount, req.Email, req.Phone),
		done:        make(chan struct{}),
	}
	c.attempt = a
	c.notices = nil
	c.view = schemas.ViewPay
	c.tracker.Begin(a.ID, a.FillContext)

	c.logger.Info("Payment attempt started.",
		zap.String("attempt", a.ID),
		zap.Uint64("generation", uint64(a.Generation)),
		zap.String("bank", card.BankName),
		observability.Card(card.Number))
	return a, nil
}

// Cancel ends the current attempt without a transaction and returns to HOME.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return ErrNoAttempt
	}
	c.logger.Info("Payment attempt cancelled.", zap.String("attempt", c.attempt.ID))
	c.endLocked(Outcome{})
	c.view = schemas.ViewHome
	return nil
}

// AttemptID reports the current attempt id, or "" when idle.
func (c *Controller) AttemptID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return ""
	}
	return c.attempt.ID
}

// Notices returns the notices raised during the current attempt.
func (c *Controller) Notices() []schemas.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]schemas.Notice(nil), c.notices...)
}

// Notify publishes a user notice. It satisfies navigation.Notifier.
func (c *Controller) Notify(ctx context.Context, notice schemas.Notice) {
	if err := c.events.Post(ctx, bus.TopicNotice, notice); err != nil {
		c.logger.Warn("Could not publish notice.", zap.String("message", notice.Message), zap.Error(err))
	}
}

// Start subscribes to completion and notice events and handles them until ctx ends or the
// bus shuts down. The returned function stops handling and waits for the loop to exit.
func (c *Controller) Start(ctx context.Context) (stop func()) {
	msgs, unsubscribe := c.events.Subscribe(bus.TopicCompletion, bus.TopicNotice)
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.handle(ctx, msg)
				c.events.Acknowledge(msg)
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
		unsubscribe()
		// Release anything delivered after the loop exited.
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.events.Acknowledge(msg)
			default:
				return
			}
		}
	}
}

func (c *Controller) handle(ctx context.Context, msg bus.Message) {
	switch payload := msg.Payload.(type) {
	case schemas.Completion:
		c.complete(ctx, payload)
	case schemas.Notice:
		c.notice(payload)
	default:
		c.logger.Debug("Ignoring event.", zap.String("topic", string(msg.Topic)))
	}
}

func (c *Controller) complete(ctx context.Context, done schemas.Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil || c.attempt.ID != done.AttemptID {
		c.logger.Debug("Ignoring completion of a superseded attempt.", zap.String("attempt", done.AttemptID))
		return
	}
	if err := c.store.AppendTransaction(ctx, done.Transaction); err != nil {
		c.logger.Error("Failed to record transaction.", zap.String("attempt", done.AttemptID), zap.Error(err))
	}
	c.endLocked(Outcome{Completed: true, Completion: done})
	c.view = schemas.ViewHome
}

func (c *Controller) notice(n schemas.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil || (n.AttemptID != "" && n.AttemptID != c.attempt.ID) {
		return
	}
	c.notices = append(c.notices, n)
	c.logger.Info("Notice raised.", zap.String("attempt", c.attempt.ID), zap.String("message", n.Message))
}

// endLocked retires the current attempt. c.mu must be held.
func (c *Controller) endLocked(o Outcome) {
	a := c.attempt
	if a == nil {
		return
	}
	c.attempt = nil
	c.token.Invalidate()
	c.tracker.End()
	a.outcome = o
	close(a.done)
}
