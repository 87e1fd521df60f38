// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ghostpay/api/schemas"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, 5, cfg.Locator().MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Locator().Backoff)
	assert.Equal(t, 50*time.Millisecond, cfg.Humanoid().KeyDelayMin)
	assert.Equal(t, 100*time.Millisecond, cfg.Humanoid().KeyDelayMax)
	assert.Equal(t, 8, cfg.Filler().SplitBoxThreshold)
	assert.Equal(t, 4, cfg.Filler().SplitBoxMaxLength)
	assert.Equal(t, 100*time.Millisecond, cfg.Filler().GroupPause)
	assert.Equal(t, 2*time.Second, cfg.Poller().IntervalMin)
	assert.Equal(t, 3*time.Second, cfg.Poller().IntervalMax)
	assert.Equal(t, "UPI", cfg.Poller().Marker)
	assert.Equal(t, "success", cfg.Completion().SuccessKeyword)
	assert.Contains(t, cfg.Navigation().ExternalSchemes, "upi://")
	assert.Equal(t, "file", cfg.Vault().Backend)
	assert.True(t, strings.HasSuffix(cfg.Vault().Path, filepath.Join(".ghostpay", "vault.json")))
	assert.NotContains(t, cfg.Vault().Path, "~")
}

func TestNewDefaultConfig_SelectorsPopulated(t *testing.T) {
	cfg := NewDefaultConfig()
	for _, role := range schemas.Roles {
		assert.NotEmpty(t, cfg.Locator().CandidatesFor(role), "role %s should have default candidates", role)
	}
	assert.Nil(t, cfg.Locator().CandidatesFor(schemas.Role("unknown")))
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Valid defaults", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Invalid locator attempts", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.LocatorCfg.MaxAttempts = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "locator.max_attempts must be a positive integer")
	})

	t.Run("Inverted key delays", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.HumanoidCfg.KeyDelayMin = 200 * time.Millisecond
		assert.Error(t, cfg.Validate())
	})

	t.Run("Poller disabled skips interval checks", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.PollerCfg.Enabled = false
		cfg.PollerCfg.IntervalMin = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Poller enabled with bad interval", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.PollerCfg.IntervalMax = time.Second
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "poller configuration invalid")
	})

	t.Run("Scheme without separator", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.NavigationCfg.ExternalSchemes = []string{"upi"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("Postgres requires URL", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.VaultCfg.Backend = "postgres"
		assert.Error(t, cfg.Validate())
		cfg.VaultCfg.DatabaseURL = "postgres://u:p@localhost/ghostpay"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("File backend requires path", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.VaultCfg.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Unknown vault backend", func(t *testing.T) {
		cfg := *NewDefaultConfig()
		cfg.VaultCfg.Backend = "redis"
		assert.Error(t, cfg.Validate())
	})
}

// -- Loading Tests --

func TestNewConfigFromViper_YAMLOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	yamlConfig := []byte(`
locator:
  max_attempts: 3
  backoff: 250ms
  amount:
    - tag: input
      match: payamt
poller:
  marker: "Pay by UPI"
navigation:
  external_schemes: ["upi://", "mybank:"]
`)
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Locator().MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Locator().Backoff)
	assert.Equal(t, []CandidateConfig{{Tag: "input", Match: "payamt"}}, cfg.Locator().Amount)
	// Roles absent from the file keep the built-in lists.
	assert.Equal(t, DefaultSelectors().Email, cfg.Locator().Email)
	assert.Equal(t, "Pay by UPI", cfg.Poller().Marker)
	assert.Equal(t, []string{"upi://", "mybank:"}, cfg.Navigation().ExternalSchemes)
}

func TestNewConfigFromViper_EnvAPIKey(t *testing.T) {
	t.Setenv("GHOSTPAY_GEMINI_API_KEY", "test-key")
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.Insights().APIKey)
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(true)
	cfg.SetBrowserTargetURL("https://bank.example/pay")
	cfg.SetPollerEnabled(false)

	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, "https://bank.example/pay", cfg.Browser().TargetURL)
	assert.False(t, cfg.Poller().Enabled)
}
