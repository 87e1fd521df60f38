// internal/dom/candidate.go
package dom

import (
	"fmt"
	"strings"
)

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// Candidate is one selector in a role's ordered list. Every non-empty field narrows the match;
// text comparisons are case-insensitive substrings, Type is an exact case-insensitive match.
type Candidate struct {
	Tag         string
	Type        string
	Match       string
	Placeholder string
	MaxLength   int
}

// XPath compiles the candidate to an XPath 1.0 expression usable both by the in-memory
// document and by document.evaluate in the browser.
func (c Candidate) XPath() string {
	tag := strings.ToLower(strings.TrimSpace(c.Tag))
	if tag == "" {
		tag = "input"
	}

	var preds []string
	if c.Type != "" {
		preds = append(preds, fmt.Sprintf("%s=%s", lowered("@type"), Literal(strings.ToLower(c.Type))))
	}
	if c.Match != "" {
		m := Literal(strings.ToLower(c.Match))
		preds = append(preds, fmt.Sprintf("(contains(%s,%s) or contains(%s,%s))", lowered("@name"), m, lowered("@id"), m))
	}
	if c.Placeholder != "" {
		preds = append(preds, fmt.Sprintf("contains(%s,%s)", lowered("@placeholder"), Literal(strings.ToLower(c.Placeholder))))
	}
	if c.MaxLength > 0 {
		preds = append(preds, fmt.Sprintf("@maxlength='%d'", c.MaxLength))
	}

	if len(preds) == 0 {
		return "//" + tag
	}
	return fmt.Sprintf("//%s[%s]", tag, strings.Join(preds, " and "))
}

func (c Candidate) String() string { return c.XPath() }

// ClickableWithText selects anchors, buttons, tabs, list items, spans and labels that own a
// text node containing marker. The comparison is case-sensitive.
func ClickableWithText(marker string) string {
	return fmt.Sprintf(
		"//*[(local-name()='a' or local-name()='button' or @role='tab' or local-name()='li' or local-name()='span' or local-name()='label') and text()[contains(.,%s)]]",
		Literal(marker))
}

// RadioButtons selects every radio input.
func RadioButtons() string {
	return Candidate{Type: "radio"}.XPath()
}

func lowered(attr string) string {
	return fmt.Sprintf("translate(%s,'%s','%s')", attr, upperAlpha, lowerAlpha)
}

// Literal quotes s as an XPath string literal.
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}
