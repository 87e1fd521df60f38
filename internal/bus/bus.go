// internal/bus/bus.go
package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topic names a class of host events.
type Topic string

const (
	// TopicLog carries schemas.DiagnosticMessage values received from the content context.
	TopicLog Topic = "LOG"
	// TopicCompletion carries schemas.Completion values.
	TopicCompletion Topic = "COMPLETION"
	// TopicNotice carries schemas.Notice values.
	TopicNotice Topic = "NOTICE"
)

// ErrClosed is returned by Post once Shutdown has started.
var ErrClosed = errors.New("bus: shut down")

// Message is the envelope delivered to subscribers.
type Message struct {
	ID        string
	Timestamp time.Time
	Topic     Topic
	Payload   interface{}
}

// Bus fans host events out to subscribers. Consumers Acknowledge every message they
// receive; Shutdown waits for outstanding acknowledgements.
type Bus struct {
	logger     *zap.Logger
	bufferSize int

	mu          sync.RWMutex
	subscribers map[Topic][]chan Message

	stateMu sync.Mutex
	closed  bool
	done    chan struct{}
	once    sync.Once

	posting  sync.WaitGroup // Post calls in flight
	inflight sync.WaitGroup // delivered, not yet acknowledged
}

// New creates a Bus whose subscriber channels buffer bufferSize messages.
func New(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:      logger.Named("bus"),
		bufferSize:  bufferSize,
		subscribers: make(map[Topic][]chan Message),
		done:        make(chan struct{}),
	}
}

// Post delivers payload to every subscriber of topic, blocking while a subscriber's buffer
// is full. It returns early when ctx is done or the bus shuts down.
func (b *Bus) Post(ctx context.Context, topic Topic, payload interface{}) error {
	b.stateMu.Lock()
	if b.closed {
		b.stateMu.Unlock()
		return ErrClosed
	}
	b.posting.Add(1)
	b.stateMu.Unlock()
	defer b.posting.Done()

	msg := Message{ID: uuid.NewString(), Timestamp: time.Now().UTC(), Topic: topic, Payload: payload}

	b.mu.RLock()
	targets := append([]chan Message(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	b.logger.Debug("Posting event.", zap.String("topic", string(topic)), zap.String("id", msg.ID), zap.Int("subscribers", len(targets)))

	for _, ch := range targets {
		b.inflight.Add(1)
		select {
		case ch <- msg:
		case <-ctx.Done():
			b.inflight.Done()
			return ctx.Err()
		case <-b.done:
			b.inflight.Done()
			return ErrClosed
		}
	}
	return nil
}

// Subscribe returns a channel receiving messages of the given topics and a function that
// stops further deliveries. The channel is closed by Shutdown.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Message, func()) {
	if len(topics) == 0 {
		panic("bus: subscribe needs at least one topic")
	}

	b.stateMu.Lock()
	closed := b.closed
	b.stateMu.Unlock()
	if closed {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan Message, b.bufferSize)
	topics = append([]Topic(nil), topics...)

	b.mu.Lock()
	for _, t := range topics {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range topics {
			subs := b.subscribers[t]
			for i, c := range subs {
				if c == ch {
					b.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subscribers[t]) == 0 {
				delete(b.subscribers, t)
			}
		}
	}
	return ch, unsubscribe
}

// Acknowledge marks msg as processed.
func (b *Bus) Acknowledge(Message) {
	b.inflight.Done()
}

// Shutdown stops new posts, closes subscriber channels, drops undelivered buffers and
// waits for acknowledgements of messages already taken by consumers. Safe to call twice.
func (b *Bus) Shutdown() {
	b.once.Do(func() {
		b.stateMu.Lock()
		b.closed = true
		b.stateMu.Unlock()
		close(b.done)

		b.posting.Wait()

		b.mu.Lock()
		unique := make(map[chan Message]struct{})
		for _, subs := range b.subscribers {
			for _, ch := range subs {
				unique[ch] = struct{}{}
			}
		}
		b.subscribers = make(map[Topic][]chan Message)
		b.mu.Unlock()

		dropped := 0
		for ch := range unique {
			close(ch)
			for range ch {
				dropped++
				b.inflight.Done()
			}
		}
		if dropped > 0 {
			b.logger.Debug("Dropped buffered events on shutdown.", zap.Int("count", dropped))
		}

		b.inflight.Wait()
		b.logger.Debug("Bus shut down.")
	})
}
