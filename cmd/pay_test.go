// File: cmd/pay_test.go
package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/browser"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/host/navigation"
)

// fakeSession stands in for the Chrome tab. onPay plays the part of the bank page.
type fakeSession struct {
	cfg     config.BrowserConfig
	policy  browser.NavigationPolicy
	monitor browser.CompletionObserver
	openErr error
	onPay   func(ctx context.Context, s *fakeSession, fc schemas.FillContext) error

	gen    generation.Generation
	ended  bool
	closed bool
}

func (s *fakeSession) Open(context.Context) error { return s.openErr }

func (s *fakeSession) Pay(ctx context.Context, gen generation.Generation, fc schemas.FillContext) error {
	s.gen = gen
	if s.onPay == nil {
		return nil
	}
	return s.onPay(ctx, s, fc)
}

func (s *fakeSession) End(context.Context)         { s.ended = true }
func (s *fakeSession) Close(context.Context) error { s.closed = true; return nil }

type failingDispatcher struct{ opened []string }

func (d *failingDispatcher) Open(_ context.Context, url string) error {
	d.opened = append(d.opened, url)
	return navigation.ErrNoHandler
}

func payDeps(session *fakeSession, dispatcher navigation.Dispatcher) dependencies {
	deps := defaultDependencies()
	deps.newSession = func(cfg config.BrowserConfig, policy browser.NavigationPolicy, monitor browser.CompletionObserver, _ browser.Mailbox, _ browser.Runner, _ *zap.Logger) PaySession {
		session.cfg, session.policy, session.monitor = cfg, policy, monitor
		return session
	}
	deps.newDispatcher = func(string, *zap.Logger) navigation.Dispatcher { return dispatcher }
	return deps
}

func TestPay_CompletesAndRecordsHistory(t *testing.T) {
	resetForTest(t)
	cfgPath := writeConfig(t, "")
	id := addCard(t, defaultDependencies(), cfgPath)

	dispatcher := &failingDispatcher{}
	session := &fakeSession{
		onPay: func(ctx context.Context, s *fakeSession, fc schemas.FillContext) error {
			assert.Equal(t, "250", fc.Amount)
			assert.False(t, s.policy.Decide(ctx, "upi://pay?pa=merchant@axis"), "external intents never load in the page")
			assert.True(t, s.policy.Decide(ctx, "https://bank.example/otp"))
			s.monitor.Observe(ctx, "https://bank.example/payment/SUCCESS")
			return nil
		},
	}
	deps := payDeps(session, dispatcher)

	out, err := execute(t, deps, "pay", id, "250", "-c", cfgPath, "--url", "https://bank.example/pay", "--headless")
	require.NoError(t, err)
	assert.Contains(t, out, "Notice: App not found")
	assert.Contains(t, out, "Payment completed: Axis 250")
	assert.Equal(t, []string{"upi://pay?pa=merchant@axis"}, dispatcher.opened)
	assert.Equal(t, "https://bank.example/pay", session.cfg.TargetURL)
	assert.True(t, session.cfg.Headless)
	assert.NotZero(t, session.gen)
	assert.True(t, session.ended)
	assert.True(t, session.closed)

	out, err = execute(t, defaultDependencies(), "history", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Axis")
	assert.Contains(t, out, "250")
}

func TestPay_TimeoutCancels(t *testing.T) {
	resetForTest(t)
	cfgPath := writeConfig(t, "")
	id := addCard(t, defaultDependencies(), cfgPath)

	session := &fakeSession{}
	out, err := execute(t, payDeps(session, &failingDispatcher{}), "pay", id, "250", "-c", cfgPath, "--timeout", "20ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not completed")
	assert.Contains(t, out, "Payment cancelled.")
	assert.True(t, session.closed)

	out, err = execute(t, defaultDependencies(), "history", "-c", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "No payments recorded.\n", out)
}

func TestPay_Errors(t *testing.T) {
	resetForTest(t)
	cfgPath := writeConfig(t, "")
	id := addCard(t, defaultDependencies(), cfgPath)

	t.Run("browser fails to open", func(t *testing.T) {
		session := &fakeSession{openErr: errors.New("no chrome")}
		_, err := execute(t, payDeps(session, &failingDispatcher{}), "pay", id, "250", "-c", cfgPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open browser")
	})

	t.Run("page fails to load", func(t *testing.T) {
		session := &fakeSession{onPay: func(context.Context, *fakeSession, schemas.FillContext) error {
			return errors.New("net::ERR_NAME_NOT_RESOLVED")
		}}
		_, err := execute(t, payDeps(session, &failingDispatcher{}), "pay", id, "250", "-c", cfgPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load payment page")
		assert.True(t, session.closed)
	})

	t.Run("invalid amount", func(t *testing.T) {
		_, err := execute(t, payDeps(&fakeSession{}, &failingDispatcher{}), "pay", id, "abc", "-c", cfgPath)
		assert.Error(t, err)
	})

	t.Run("unknown card", func(t *testing.T) {
		_, err := execute(t, payDeps(&fakeSession{}, &failingDispatcher{}), "pay", "missing", "250", "-c", cfgPath)
		assert.Error(t, err)
	})
}
