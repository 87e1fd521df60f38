// internal/browser/cdpdoc/element.go
package cdpdoc

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"

	"github.com/xkilldash9x/ghostpay/internal/dom"
)

// Element is a remote handle on a page element. The handle outlives the node: calls on a
// detached element run against the orphaned node and change nothing the page shows.
type Element struct {
	rt   Runtime
	id   runtime.RemoteObjectID
	desc string
}

var _ dom.Element = (*Element)(nil)

func (e *Element) String() string {
	if e.desc != "" {
		return e.desc
	}
	return "element " + string(e.id)
}

func (e *Element) call(ctx context.Context, fn string, out interface{}) error {
	obj, err := e.rt.CallFunctionOn(ctx, e.id, fn, true)
	if err != nil {
		return fmt.Errorf("cdpdoc: %s: %w", e, err)
	}
	if out == nil {
		return nil
	}
	return decode(obj, out)
}

func (e *Element) callBool(ctx context.Context, fn string) (bool, error) {
	var v bool
	err := e.call(ctx, fn, &v)
	return v, err
}

func (e *Element) callString(ctx context.Context, fn string) (string, error) {
	var v string
	err := e.call(ctx, fn, &v)
	return v, err
}

func (e *Element) ReadValue(ctx context.Context) (string, error) {
	return e.callString(ctx, readValueFn)
}

func (e *Element) WriteValue(ctx context.Context, value string) error {
	v, err := literal(value)
	if err != nil {
		return err
	}
	return e.call(ctx, fmt.Sprintf(writeValueFn, v), nil)
}

func (e *Element) DispatchEvent(ctx context.Context, ev dom.Event) error {
	typ, err := literal(string(ev.Type))
	if err != nil {
		return err
	}
	key, err := literal(ev.Key)
	if err != nil {
		return err
	}
	return e.call(ctx, fmt.Sprintf(dispatchFn, typ, key), nil)
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) { return e.callBool(ctx, visibleFn) }

func (e *Element) IsEnabled(ctx context.Context) (bool, error) { return e.callBool(ctx, enabledFn) }

func (e *Element) IsConnected(ctx context.Context) (bool, error) {
	return e.callBool(ctx, connectedFn)
}

func (e *Element) Attr(ctx context.Context, name string) (string, error) {
	n, err := literal(name)
	if err != nil {
		return "", err
	}
	return e.callString(ctx, fmt.Sprintf(attrFn, n))
}

func (e *Element) Text(ctx context.Context) (string, error) { return e.callString(ctx, textFn) }

func (e *Element) LabelText(ctx context.Context) (string, error) {
	return e.callString(ctx, labelFn)
}

func (e *Element) Click(ctx context.Context) error { return e.call(ctx, clickFn, nil) }

func (e *Element) Focus(ctx context.Context) error { return e.call(ctx, focusFn, nil) }

func (e *Element) Blur(ctx context.Context) error { return e.call(ctx, blurFn, nil) }

// Describe fetches a tag#id[name=...] label for logs.
func (e *Element) Describe(ctx context.Context) (string, error) {
	return e.callString(ctx, describeFn)
}
