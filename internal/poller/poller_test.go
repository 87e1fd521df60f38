// internal/poller/poller_test.go
package poller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/diagnostics"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/dom/htmldoc"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/poller"
)

const tabsHTML = `
<html><body>
  <ul>
    <li id="cards">Cards</li>
    <li id="upiHidden" style="display:none">UPI</li>
    <li id="upi">UPI / QR</li>
  </ul>
  <p>Pay with upi</p>
</body></html>`

func defaultCfg() config.PollerConfig {
	return config.NewDefaultConfig().Poller()
}

func TestTick_ClicksFirstUsableMarker(t *testing.T) {
	doc, err := htmldoc.ParseString(tabsHTML)
	require.NoError(t, err)
	p := poller.NewWithSeed(defaultCfg(), nil, zaptest.NewLogger(t), 1)

	clicked, err := p.Tick(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, clicked)
	assert.Equal(t, []dom.EventType{dom.EventClick}, doc.EventTypes("//*[@id='upi']"))
	assert.Empty(t, doc.EventTypes("//*[@id='upiHidden']"))
}

func TestTick_MarkerIsCaseSensitive(t *testing.T) {
	doc, err := htmldoc.ParseString(`<html><body><a href="#">upi</a><button>Upi</button></body></html>`)
	require.NoError(t, err)
	p := poller.NewWithSeed(defaultCfg(), nil, zaptest.NewLogger(t), 1)

	clicked, err := p.Tick(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, clicked)
}

func TestRun_TicksUntilSuperseded(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc, err := htmldoc.ParseString(tabsHTML)
	require.NoError(t, err)

	var emitted []string
	emitter := diagnostics.EmitterFunc(func(msg string) { emitted = append(emitted, msg) })
	p := poller.NewWithSeed(defaultCfg(), emitter, zaptest.NewLogger(t), 3)

	token := &generation.Token{}
	rec := &generation.Recorder{}
	rec.OnSleep(func(n int) {
		if n == 4 {
			token.Next()
		}
	})

	err = p.Run(context.Background(), doc, generation.NewGuard(token, token.Next(), rec))
	assert.ErrorIs(t, err, generation.ErrStale)

	// Three completed ticks, each clicking the tab again.
	assert.Len(t, doc.EventTypes("//*[@id='upi']"), 3)
	assert.Equal(t, []string{"Activated UPI option"}, emitted)

	for _, d := range rec.Durations() {
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc, err := htmldoc.ParseString(`<html><body></body></html>`)
	require.NoError(t, err)
	cfg := defaultCfg()
	cfg.IntervalMin, cfg.IntervalMax = time.Millisecond, 2*time.Millisecond
	p := poller.New(cfg, nil, zaptest.NewLogger(t))

	token := &generation.Token{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = p.Run(ctx, doc, generation.NewGuard(token, token.Next(), nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_Disabled(t *testing.T) {
	cfg := defaultCfg()
	cfg.Enabled = false
	p := poller.New(cfg, nil, zaptest.NewLogger(t))
	token := &generation.Token{}
	rec := &generation.Recorder{}

	assert.NoError(t, p.Run(context.Background(), nil, generation.NewGuard(token, token.Next(), rec)))
	assert.Zero(t, rec.Count())
}
