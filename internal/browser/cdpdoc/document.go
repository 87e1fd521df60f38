// internal/browser/cdpdoc/document.go
package cdpdoc

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/ghostpay/internal/dom"
)

// Document is the live page document reached over CDP.
type Document struct {
	rt Runtime
}

var _ dom.Document = (*Document)(nil)

// New creates a Document over rt.
func New(rt Runtime) *Document {
	return &Document{rt: rt}
}

// FindAll evaluates xpath in the page and returns handles on the matching elements.
func (d *Document) FindAll(ctx context.Context, xpath string) ([]dom.Element, error) {
	expr, err := literal(xpath)
	if err != nil {
		return nil, err
	}
	arr, err := d.rt.Evaluate(ctx, fmt.Sprintf(findAllScript, expr))
	if err != nil {
		return nil, fmt.Errorf("cdpdoc: evaluate %s: %w", xpath, err)
	}
	if arr == nil || arr.ObjectID == "" {
		return nil, fmt.Errorf("cdpdoc: evaluate %s returned no array", xpath)
	}
	defer func() { _ = d.rt.Release(ctx, arr.ObjectID) }()

	lenObj, err := d.rt.CallFunctionOn(ctx, arr.ObjectID, lengthFn, true)
	if err != nil {
		return nil, err
	}
	var n int
	if err := decode(lenObj, &n); err != nil {
		return nil, err
	}

	els := make([]dom.Element, 0, n)
	for i := 0; i < n; i++ {
		obj, err := d.rt.CallFunctionOn(ctx, arr.ObjectID, fmt.Sprintf(indexFn, i), false)
		if err != nil {
			return nil, err
		}
		if obj == nil || obj.ObjectID == "" {
			continue
		}
		els = append(els, &Element{rt: d.rt, id: obj.ObjectID, desc: obj.Description})
	}
	return els, nil
}

// decode unmarshals a by-value result. An undefined result leaves out untouched.
func decode(obj *runtime.RemoteObject, out interface{}) error {
	if obj == nil {
		return fmt.Errorf("cdpdoc: missing result")
	}
	raw := []byte(obj.Value)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cdpdoc: decode result: %w", err)
	}
	return nil
}

func literal(v interface{}) (string, error) {
	b, err := json.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cdpdoc: encode argument: %w", err)
	}
	return string(b), nil
}
