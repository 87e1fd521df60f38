// internal/app/controller_test.go
package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/bus"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/host/completion"
	"github.com/xkilldash9x/ghostpay/internal/vault"
)

type fixture struct {
	ctrl    *Controller
	vault   *vault.Vault
	bus     *bus.Bus
	monitor *completion.Monitor
	token   *generation.Token
	cardID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	v := vault.New(vault.NewMemoryKV(), logger)
	card, err := v.AddCard(ctx, schemas.CardRecord{
		BankName: "Axis", Number: "4598123456789012", Name: "Asha Rao", Expiry: "08/28",
		Email: "card@bank.in", Phone: "9000000000",
	})
	require.NoError(t, err)

	b := bus.New(logger, 8)
	mon := completion.New(config.CompletionConfig{SuccessKeyword: "success"}, b, logger)
	token := &generation.Token{}
	ctrl := New(v, b, mon, token, logger)
	ids := []string{"attempt-1", "attempt-2", "attempt-3"}
	ctrl.newID = func() string { id := ids[0]; ids = ids[1:]; return id }

	stop := ctrl.Start(ctx)
	t.Cleanup(func() {
		stop()
		b.Shutdown()
	})
	return &fixture{ctrl: ctrl, vault: v, bus: b, monitor: mon, token: token, cardID: card.ID}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBeginPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "250", Email: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, schemas.ViewPay, f.ctrl.View())
	assert.Equal(t, "attempt-1", a.ID)
	assert.True(t, f.token.IsCurrent(a.Generation))
	assert.Equal(t, "a@b.com", a.FillContext.Email, "explicit email wins")
	assert.Equal(t, "9000000000", a.FillContext.Phone, "phone falls back to the card")
	assert.Equal(t, "250", a.FillContext.Amount)
	assert.Equal(t, "attempt-1", f.ctrl.AttemptID())
}

func TestBeginPayment_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "0"})
	assert.Error(t, err)
	_, err = f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: "nope", Amount: "10"})
	assert.ErrorIs(t, err, vault.ErrNotFound)

	assert.Equal(t, schemas.ViewHome, f.ctrl.View())
	assert.Equal(t, generation.Generation(0), f.token.Current())
}

func TestCompletion_RecordsOnceAndGoesHome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "250"})
	require.NoError(t, err)

	_, fired := f.monitor.Observe(ctx, "https://bank.example/payment/success?id=9")
	require.True(t, fired)
	_, fired = f.monitor.Observe(ctx, "https://bank.example/payment/success?id=9")
	assert.False(t, fired)

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("attempt did not end")
	}
	out := a.Outcome()
	assert.True(t, out.Completed)
	assert.Equal(t, "250", out.Completion.Transaction.Amount)
	assert.Equal(t, schemas.ViewHome, f.ctrl.View())
	assert.False(t, f.token.IsCurrent(a.Generation), "leaving PAY retires the generation")

	history, err := f.vault.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Axis", history[0].BankName)
}

func TestCompletion_SupersededAttemptIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "10"})
	require.NoError(t, err)
	second, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "20"})
	require.NoError(t, err)

	<-first.Done()
	assert.False(t, first.Outcome().Completed)
	assert.False(t, f.token.IsCurrent(first.Generation))

	require.NoError(t, f.bus.Post(ctx, bus.TopicCompletion, schemas.Completion{AttemptID: first.ID}))
	require.NoError(t, f.bus.Post(ctx, bus.TopicNotice, schemas.Notice{AttemptID: "marker", Message: "sync"}))

	// The notice of a foreign attempt is dropped too; give the loop time to drain both.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, schemas.ViewPay, f.ctrl.View())
	assert.Equal(t, second.ID, f.ctrl.AttemptID())
	assert.Empty(t, f.ctrl.Notices())

	history, err := f.vault.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestNotify_StaysOnPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "250"})
	require.NoError(t, err)

	f.ctrl.Notify(ctx, schemas.Notice{AttemptID: a.ID, Message: "App not found", URL: "upi://pay"})

	assert.Eventually(t, func() bool { return len(f.ctrl.Notices()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "App not found", f.ctrl.Notices()[0].Message)
	assert.Equal(t, schemas.ViewPay, f.ctrl.View())
	assert.True(t, f.token.IsCurrent(a.Generation))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.ctrl.Cancel(), ErrNoAttempt)

	a, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "250"})
	require.NoError(t, err)
	require.NoError(t, f.ctrl.Cancel())

	<-a.Done()
	assert.False(t, a.Outcome().Completed)
	assert.Equal(t, schemas.ViewHome, f.ctrl.View())
	assert.False(t, f.token.IsCurrent(a.Generation))
	assert.Equal(t, "", f.ctrl.AttemptID())

	_, fired := f.monitor.Observe(ctx, "https://bank.example/success")
	assert.False(t, fired, "the monitor stops watching a cancelled attempt")
}

func TestSetView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.SetView(schemas.ViewAdd))
	assert.Equal(t, schemas.ViewAdd, f.ctrl.View())
	assert.Error(t, f.ctrl.SetView(schemas.ViewPay))
	assert.Error(t, f.ctrl.SetView("SETTINGS"))

	a, err := f.ctrl.BeginPayment(ctx, PaymentRequest{CardID: f.cardID, Amount: "5"})
	require.NoError(t, err)
	require.NoError(t, f.ctrl.SetView(schemas.ViewInsights))
	<-a.Done()
	assert.Equal(t, schemas.ViewInsights, f.ctrl.View())
}

type failingStore struct{ CardStore }

func (failingStore) AppendTransaction(context.Context, schemas.TransactionRecord) error {
	return errors.New("disk full")
}

func TestCompletion_StoreFailureStillEndsAttempt(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	v := vault.New(vault.NewMemoryKV(), logger)
	card, err := v.AddCard(ctx, schemas.CardRecord{Number: "5105105105105100", Name: "R", Expiry: "01/30"})
	require.NoError(t, err)

	b := bus.New(logger, 1)
	defer b.Shutdown()
	mon := completion.New(config.CompletionConfig{SuccessKeyword: "success"}, b, logger)
	ctrl := New(failingStore{v}, b, mon, &generation.Token{}, logger)
	stop := ctrl.Start(ctx)
	defer stop()

	a, err := ctrl.BeginPayment(ctx, PaymentRequest{CardID: card.ID, Amount: "1"})
	require.NoError(t, err)
	_, fired := mon.Observe(ctx, "https://x/SUCCESS")
	require.True(t, fired)

	<-a.Done()
	assert.True(t, a.Outcome().Completed)
	assert.Equal(t, schemas.ViewHome, ctrl.View())
}
