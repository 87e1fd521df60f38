// internal/shim/shim.go
package shim

import (
	_ "embed"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/ghostpay/api/schemas"
)

const (
	// ContextPlaceholder is replaced with the JSON encoded page context.
	ContextPlaceholder = "/*{{GHOST_CONTEXT}}*/"
	// BridgePlaceholder is replaced with the quoted binding name.
	BridgePlaceholder = "/*{{GHOST_BRIDGE}}*/"
	// BindingName is the host binding the content context reports through.
	BindingName = "ghostBridge"
)

// pageContext is the part of a FillContext the bootstrap needs to check a submitted form.
type pageContext struct {
	Number string `json:"number"`
	Amount string `json:"amount"`
}

//go:embed ghost.js
var ghostTemplate string

// Template returns the embedded bootstrap template.
func Template() string { return ghostTemplate }

// BuildScript renders the bootstrap for fc. It has no side effects; the host decides when
// and where to inject the result.
func BuildScript(fc schemas.FillContext) (string, error) {
	return Render(ghostTemplate, fc, BindingName)
}

// Render fills both placeholders of template.
func Render(template string, fc schemas.FillContext, binding string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("shim: template is empty")
	}
	for _, p := range []string{ContextPlaceholder, BridgePlaceholder} {
		if !strings.Contains(template, p) {
			return "", fmt.Errorf("shim: template lacks placeholder %s", p)
		}
	}
	if binding == "" {
		return "", fmt.Errorf("shim: binding name is empty")
	}

	contextJSON, err := jsLiteral(pageContext{Number: fc.Card.Number, Amount: strings.TrimSpace(fc.Amount)})
	if err != nil {
		return "", fmt.Errorf("shim: encode fill context: %w", err)
	}
	bindingJSON, err := jsLiteral(binding)
	if err != nil {
		return "", fmt.Errorf("shim: encode binding: %w", err)
	}

	script := strings.Replace(template, BridgePlaceholder, bindingJSON, 1)
	return strings.Replace(script, ContextPlaceholder, contextJSON, 1), nil
}

// jsLiteral encodes v as JSON that is also a valid JavaScript expression.
func jsLiteral(v interface{}) (string, error) {
	b, err := json.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return "", err
	}
	s := strings.ReplaceAll(string(b), "\u2028", `\u2028`)
	return strings.ReplaceAll(s, "\u2029", `\u2029`), nil
}
