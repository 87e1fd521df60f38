// internal/browser/stealth/stealth_test.go
package stealth

import (
	"testing"

	"github.com/chromedp/cdproto/emulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/ghostpay/internal/config"
)

func TestScript(t *testing.T) {
	s, err := Script(Persona{Languages: []string{"en-IN", "en"}})
	require.NoError(t, err)
	assert.Contains(t, s, `var languages = ["en-IN","en"];`)
	assert.NotContains(t, s, languagesPlaceholder)

	s, err = Script(Persona{})
	require.NoError(t, err)
	assert.Contains(t, s, `var languages = [];`)
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-IN,en;q=0.9", AcceptLanguage([]string{"en-IN", "en"}))
	assert.Equal(t, "hi-IN,hi;q=0.9,en;q=0.8", AcceptLanguage([]string{"hi-IN", "hi", "en"}))
	assert.Equal(t, "", AcceptLanguage(nil))
}

func TestApply(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	t.Run("full persona", func(t *testing.T) {
		tasks, err := Apply(Persona{UserAgent: "UA", Languages: []string{"en-IN"}, Timezone: "Asia/Kolkata", Locale: "en-IN"}, logger)
		require.NoError(t, err)
		require.Len(t, tasks, 5)

		ua, ok := tasks[1].(*emulation.SetUserAgentOverrideParams)
		require.True(t, ok)
		assert.Equal(t, "UA", ua.UserAgent)
		tz, ok := tasks[2].(*emulation.SetTimezoneOverrideParams)
		require.True(t, ok)
		assert.Equal(t, "Asia/Kolkata", tz.TimezoneID)
	})

	t.Run("empty persona only injects evasions", func(t *testing.T) {
		tasks, err := Apply(Persona{}, logger)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	assert.Equal(t, 2, logs.FilterMessage("Applying browser stealth persona").Len())
}

func TestPersonaFromConfig(t *testing.T) {
	p := PersonaFromConfig(config.BrowserConfig{Locale: "en-IN", Timezone: "Asia/Kolkata", Languages: []string{"en-IN"}})
	assert.Equal(t, Persona{Locale: "en-IN", Timezone: "Asia/Kolkata", Languages: []string{"en-IN"}}, p)
}
