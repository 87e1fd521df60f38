// internal/engine/locked.go
package engine

import (
	"context"
	"sync"

	"github.com/xkilldash9x/ghostpay/internal/dom"
)

// lockedDocument serializes every document operation behind one mutex. The filler and the
// poller interleave only at operation boundaries, as callbacks do on a page's event loop.
type lockedDocument struct {
	mu  *sync.Mutex
	doc dom.Document
}

func (d lockedDocument) FindAll(ctx context.Context, xpath string) ([]dom.Element, error) {
	d.mu.Lock()
	els, err := d.doc.FindAll(ctx, xpath)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	wrapped := make([]dom.Element, len(els))
	for i, el := range els {
		wrapped[i] = lockedElement{mu: d.mu, el: el}
	}
	return wrapped, nil
}

type lockedElement struct {
	mu *sync.Mutex
	el dom.Element
}

func (e lockedElement) String() string { return dom.Describe(e.el) }

func (e lockedElement) ReadValue(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.ReadValue(ctx)
}

func (e lockedElement) WriteValue(ctx context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.WriteValue(ctx, value)
}

func (e lockedElement) DispatchEvent(ctx context.Context, ev dom.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.DispatchEvent(ctx, ev)
}

func (e lockedElement) IsVisible(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.IsVisible(ctx)
}

func (e lockedElement) IsEnabled(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.IsEnabled(ctx)
}

func (e lockedElement) IsConnected(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.IsConnected(ctx)
}

func (e lockedElement) Attr(ctx context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.Attr(ctx, name)
}

func (e lockedElement) Text(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.Text(ctx)
}

func (e lockedElement) LabelText(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.LabelText(ctx)
}

func (e lockedElement) Click(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.Click(ctx)
}

func (e lockedElement) Focus(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.Focus(ctx)
}

func (e lockedElement) Blur(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.el.Blur(ctx)
}
