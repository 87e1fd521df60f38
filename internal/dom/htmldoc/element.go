// internal/dom/htmldoc/element.go
package htmldoc

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ghostpay/internal/dom"
)

type element struct {
	doc  *Document
	node *html.Node
}

var _ dom.Element = (*element)(nil)

func (e *element) String() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return UniqueXPath(e.node)
}

func (e *element) ReadValue(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.valueOf(e.node), nil
}

func (e *element) WriteValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.values[e.node] = value
	return nil
}

func (e *element) DispatchEvent(ctx context.Context, ev dom.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.record(e.node, ev.Type, ev.Key)
	return nil
}

// IsVisible treats the hidden attribute, hidden inputs and inline display:none or
// visibility:hidden on the element or any ancestor as not displayed.
func (e *element) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.connected(e.node) {
		return false, nil
	}
	if strings.EqualFold(e.node.Data, "input") && strings.EqualFold(htmlquery.SelectAttr(e.node, "type"), "hidden") {
		return false, nil
	}
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if hasAttr(n, "hidden") {
			return false, nil
		}
		style := strings.ToLower(strings.ReplaceAll(htmlquery.SelectAttr(n, "style"), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if hasAttr(e.node, "disabled") {
		return false, nil
	}
	for n := e.node.Parent; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if strings.EqualFold(n.Data, "fieldset") && hasAttr(n, "disabled") {
			return false, nil
		}
	}
	return true, nil
}

func (e *element) IsConnected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.connected(e.node), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return htmlquery.SelectAttr(e.node, name), nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return normalizeSpace(htmlquery.InnerText(e.node)), nil
}

// LabelText resolves label[for=id], then an enclosing label, then aria-label.
func (e *element) LabelText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if id := htmlquery.SelectAttr(e.node, "id"); id != "" {
		if label := htmlquery.FindOne(e.doc.root, "//label[@for="+dom.Literal(id)+"]"); label != nil {
			return normalizeSpace(htmlquery.InnerText(label)), nil
		}
	}
	for n := e.node.Parent; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if strings.EqualFold(n.Data, "label") {
			return normalizeSpace(htmlquery.InnerText(n)), nil
		}
	}
	return htmlquery.SelectAttr(e.node, "aria-label"), nil
}

// Click records a click and applies the default action of radios, checkboxes and labels.
func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.record(e.node, dom.EventClick, "")

	e.doc.mu.Lock()
	var control *html.Node
	if e.doc.connected(e.node) {
		control = e.doc.activate(e.node)
	}
	e.doc.mu.Unlock()

	if control != nil {
		e.doc.record(control, dom.EventClick, "")
		e.doc.record(control, dom.EventChange, "")
	}
	return nil
}

func (e *element) Focus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.record(e.node, dom.EventFocus, "")
	return nil
}

func (e *element) Blur(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.record(e.node, dom.EventBlur, "")
	return nil
}

// activate checks radios and checkboxes in place. For a label it activates the associated
// control and returns it so the caller can dispatch its events.
func (d *Document) activate(n *html.Node) *html.Node {
	if strings.EqualFold(n.Data, "label") {
		var control *html.Node
		if target := htmlquery.SelectAttr(n, "for"); target != "" {
			control = htmlquery.FindOne(d.root, "//*[@id="+dom.Literal(target)+"]")
		} else {
			control = htmlquery.FindOne(n, ".//input")
		}
		if control != nil && d.check(control) {
			return control
		}
		return nil
	}
	d.check(n)
	return nil
}

func (d *Document) check(n *html.Node) bool {
	if !strings.EqualFold(n.Data, "input") {
		return false
	}
	switch strings.ToLower(htmlquery.SelectAttr(n, "type")) {
	case "radio":
		if name := htmlquery.SelectAttr(n, "name"); name != "" {
			for _, other := range htmlquery.Find(d.root, "//input[@name="+dom.Literal(name)+"]") {
				removeAttr(other, "checked")
			}
		}
		setAttr(n, "checked", "checked")
		return true
	case "checkbox":
		if hasAttr(n, "checked") {
			removeAttr(n, "checked")
		} else {
			setAttr(n, "checked", "checked")
		}
		return true
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
