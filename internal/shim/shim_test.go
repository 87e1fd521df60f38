// internal/shim/shim_test.go
package shim_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	. "github.com/xkilldash9x/ghostpay/internal/shim"
)

func fillContext() schemas.FillContext {
	card := schemas.CardRecord{ID: "c1", BankName: "Axis", Number: "4598123456789012", Name: "A B", Expiry: "12/29"}
	return schemas.NewFillContext(card, "250", "a@b.com", "9876543210")
}

func TestRender(t *testing.T) {
	t.Parallel()
	template := `var b = /*{{GHOST_BRIDGE}}*/; var c = /*{{GHOST_CONTEXT}}*/;`

	t.Run("fills both placeholders", func(t *testing.T) {
		t.Parallel()
		script, err := Render(template, schemas.FillContext{Amount: "1"}, "bridge")
		require.NoError(t, err)
		assert.Equal(t, `var b = "bridge"; var c = {"number":"","amount":"1"};`, script)
		assert.NotContains(t, script, "{{")
	})

	t.Run("escapes line separators", func(t *testing.T) {
		t.Parallel()
		script, err := Render(template, schemas.FillContext{Amount: "a\u2028b"}, "bridge")
		require.NoError(t, err)
		assert.Contains(t, script, `a\u2028b`)
		assert.NotContains(t, script, "\u2028")
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()
		_, err := Render("", schemas.FillContext{}, "b")
		assert.Error(t, err)
		_, err = Render(`/*{{GHOST_CONTEXT}}*/`, schemas.FillContext{}, "b")
		assert.ErrorContains(t, err, BridgePlaceholder)
		_, err = Render(template, schemas.FillContext{}, "")
		assert.Error(t, err)
	})
}

func TestBuildScript(t *testing.T) {
	t.Parallel()
	fc := fillContext()

	first, err := BuildScript(fc)
	require.NoError(t, err)
	second, err := BuildScript(fc)
	require.NoError(t, err)
	assert.Equal(t, first, second, "construction is a pure function of its input")

	assert.Contains(t, first, `var bridgeName = "ghostBridge";`)
	assert.Contains(t, first, `{"number":"4598123456789012","amount":"250"}`)
	assert.Contains(t, first, `type: "LOG"`)
	assert.NotContains(t, first, ContextPlaceholder)
	assert.Contains(t, Template(), ContextPlaceholder)
}

func TestBuildScript_KeepsCardDataPrivate(t *testing.T) {
	t.Parallel()
	script, err := BuildScript(fillContext())
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(script, "4598123456789012"), "the number appears only in the private context literal")
	assert.NotContains(t, script, "9876543210", "contact data is not embedded")
	assert.NotContains(t, script, "a@b.com")
	assert.NotContains(t, script, "12/29")
	assert.NotContains(t, script, "window.__ghost =")
	assert.Contains(t, script, `Object.defineProperty(window, "__ghostReady", {
    value: true,`)
	assert.Contains(t, script, "window.top !== window", "embedded frames are skipped")

	// The only property ever assigned on window is the install marker.
	for _, line := range strings.Split(script, "\n") {
		if strings.Contains(line, "defineProperty(window") {
			assert.Contains(t, line, `"__ghostReady"`)
		}
	}
}
