// internal/dom/dom.go
package dom

import (
	"context"
	"fmt"
)

// EventType is a DOM event name dispatched on an element.
type EventType string

const (
	EventKeyDown  EventType = "keydown"
	EventKeyPress EventType = "keypress"
	EventInput    EventType = "input"
	EventKeyUp    EventType = "keyup"
	EventChange   EventType = "change"
	EventFocus    EventType = "focus"
	EventBlur     EventType = "blur"
	EventClick    EventType = "click"
)

// Event is a synthetic event. Key is set for keyboard events.
type Event struct {
	Type EventType
	Key  string
}

// Element is a handle on one live element of the content document. Operations on a handle
// whose node was removed from the document succeed without effect; IsConnected tells them apart.
type Element interface {
	ReadValue(ctx context.Context) (string, error)
	WriteValue(ctx context.Context, value string) error
	DispatchEvent(ctx context.Context, ev Event) error
	IsVisible(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	IsConnected(ctx context.Context) (bool, error)
	Attr(ctx context.Context, name string) (string, error)
	// Text is the element's rendered text content.
	Text(ctx context.Context) (string, error)
	// LabelText is the text of the label associated with the element, if any.
	LabelText(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Focus(ctx context.Context) error
	Blur(ctx context.Context) error
}

// Document is the content document as seen by the engine.
type Document interface {
	// FindAll evaluates an XPath 1.0 expression and returns matching elements in document order.
	FindAll(ctx context.Context, xpath string) ([]Element, error)
}

// Describe returns a short, log-friendly label for el.
func Describe(el Element) string {
	if s, ok := el.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", el)
}

// Usable reports whether el is visible and enabled. Hidden or disabled twins of a field are
// never targets.
func Usable(ctx context.Context, el Element) (bool, error) {
	visible, err := el.IsVisible(ctx)
	if err != nil || !visible {
		return false, err
	}
	return el.IsEnabled(ctx)
}

// FilterUsable keeps the visible, enabled elements of els in order.
func FilterUsable(ctx context.Context, els []Element) ([]Element, error) {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		ok, err := Usable(ctx, el)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}
