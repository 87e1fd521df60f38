// internal/diagnostics/channel.go
package diagnostics

import (
	"fmt"
	"sync/atomic"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/ghostpay/api/schemas"
)

// Emitter sends a diagnostic line towards the host. It never blocks and never fails.
type Emitter interface {
	Emit(msg string)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(msg string)

func (f EmitterFunc) Emit(msg string) { f(msg) }

// Nop discards everything.
var Nop Emitter = EmitterFunc(func(string) {})

// Emitf formats and emits.
func Emitf(e Emitter, format string, args ...interface{}) {
	e.Emit(fmt.Sprintf(format, args...))
}

// Channel is the one-way queue from content to host. Payloads are wire-encoded messages.
// When the queue is full new payloads are dropped; the sender is never told.
type Channel struct {
	queue   chan []byte
	dropped atomic.Uint64
}

// NewChannel creates a Channel holding up to size undelivered payloads.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 1
	}
	return &Channel{queue: make(chan []byte, size)}
}

// Emit encodes msg as a LOG message and enqueues it.
func (c *Channel) Emit(msg string) {
	payload, err := Encode(schemas.DiagnosticMessage{Type: schemas.KindLog, Msg: msg})
	if err != nil {
		c.dropped.Add(1)
		return
	}
	c.Deliver(payload)
}

// Deliver enqueues an already encoded payload, such as one raised by the page through
// the browser binding.
func (c *Channel) Deliver(payload []byte) {
	select {
	case c.queue <- payload:
	default:
		c.dropped.Add(1)
	}
}

// Messages is the receiving end.
func (c *Channel) Messages() <-chan []byte { return c.queue }

// Dropped counts payloads lost to a full queue.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

// Encode renders msg in the wire format {"type":"LOG","msg":"..."}.
func Encode(msg schemas.DiagnosticMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses a wire payload.
func Decode(payload []byte) (schemas.DiagnosticMessage, error) {
	var msg schemas.DiagnosticMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("diagnostics: decode: %w", err)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("diagnostics: message without type")
	}
	return msg, nil
}
