// internal/dom/htmldoc/document.go
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/ghostpay/internal/dom"
)

// RecordedEvent is one event observed by a connected element.
type RecordedEvent struct {
	Target string
	Type   dom.EventType
	Key    string
}

// Listener plays the hosting page's own scripts. It runs after the event is recorded
// and may mutate the document.
type Listener func(ev RecordedEvent)

// Document is an in-memory content document. Values live beside the tree, the way a
// browser keeps the value property apart from the value attribute.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	values    map[*html.Node]string
	events    []RecordedEvent
	listeners []Listener
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	return &Document{root: root, values: make(map[*html.Node]string)}, nil
}

// ParseString reads an HTML document from s.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// FindAll implements dom.Document.
func (d *Document) FindAll(ctx context.Context, expr string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: query %q: %w", expr, err)
	}
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, &element{doc: d, node: n})
		}
	}
	return out, nil
}

// Listen registers a page-side listener.
func (d *Document) Listen(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Events returns every event recorded so far.
func (d *Document) Events() []RecordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RecordedEvent(nil), d.events...)
}

// EventTypes returns the event types recorded on the element whose identity is target.
func (d *Document) EventTypes(target string) []dom.EventType {
	var types []dom.EventType
	for _, ev := range d.Events() {
		if ev.Target == target {
			types = append(types, ev.Type)
		}
	}
	return types
}

// Value returns the current value of the first element matching expr.
func (d *Document) Value(expr string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.findOne(expr)
	if err != nil {
		return "", err
	}
	return d.valueOf(n), nil
}

// Checked reports whether the first element matching expr is checked.
func (d *Document) Checked(expr string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.findOne(expr)
	if err != nil {
		return false, err
	}
	return hasAttr(n, "checked"), nil
}

// Field is a snapshot of one form control.
type Field struct {
	XPath string
	Name  string
	Type  string
	Value string
}

// Fields returns a snapshot of every input, textarea and select in document order.
func (d *Document) Fields() []Field {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Field
	for _, n := range htmlquery.Find(d.root, "//input|//textarea|//select") {
		out = append(out, Field{
			XPath: UniqueXPath(n),
			Name:  htmlquery.SelectAttr(n, "name"),
			Type:  strings.ToLower(htmlquery.SelectAttr(n, "type")),
			Value: d.valueOf(n),
		})
	}
	return out
}

// Rerender replaces the first element matching expr with a fresh copy, as a page framework
// does when it re-renders a component. Handles on the old node become detached.
func (d *Document) Rerender(expr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.findOne(expr)
	if err != nil {
		return err
	}
	if n.Parent == nil {
		return fmt.Errorf("htmldoc: cannot rerender the root")
	}
	parent := n.Parent
	parent.InsertBefore(cloneNode(n), n)
	parent.RemoveChild(n)
	return nil
}

// Remove detaches the first element matching expr.
func (d *Document) Remove(expr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.findOne(expr)
	if err != nil {
		return err
	}
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return nil
}

// AppendHTML parses fragment in the context of the first element matching parentExpr and
// appends the result to it, simulating content that renders late.
func (d *Document) AppendHTML(parentExpr, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent, err := d.findOne(parentExpr)
	if err != nil {
		return err
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("htmldoc: parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

// Render writes the current tree as HTML. Values are not reflected into attributes.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Document) findOne(expr string) (*html.Node, error) {
	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: query %q: %w", expr, err)
	}
	if n == nil {
		return nil, fmt.Errorf("htmldoc: no element matches %q", expr)
	}
	return n, nil
}

func (d *Document) valueOf(n *html.Node) string {
	if v, ok := d.values[n]; ok {
		return v
	}
	if strings.EqualFold(n.Data, "textarea") {
		return htmlquery.InnerText(n)
	}
	return htmlquery.SelectAttr(n, "value")
}

func (d *Document) connected(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// record appends an event and then runs listeners with the lock released.
func (d *Document) record(n *html.Node, typ dom.EventType, key string) {
	d.mu.Lock()
	if !d.connected(n) {
		d.mu.Unlock()
		return
	}
	ev := RecordedEvent{Target: UniqueXPath(n), Type: typ, Key: key}
	d.events = append(d.events, ev)
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, key) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
