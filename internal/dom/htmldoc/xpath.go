// internal/dom/htmldoc/xpath.go
package htmldoc

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// UniqueXPath returns an expression selecting exactly node. The nearest ancestor with an id
// anchors the path; otherwise the path is absolute with 1-based same-tag sibling indices.
func UniqueXPath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var segments []string
	anchored := false
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode || n.Data == "" {
			continue
		}
		tag := strings.ToLower(n.Data)

		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			segments = append(segments, fmt.Sprintf(`//*[@id='%s']`, id))
			anchored = true
			break
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", tag, siblingIndex(n, tag)))
	}

	if len(segments) == 0 {
		return "/"
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	path := strings.Join(segments, "/")
	if anchored {
		return path
	}
	return "/" + path
}

func siblingIndex(n *html.Node, tag string) int {
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			index++
		}
	}
	return index
}
