// File: cmd/pay.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/internal/app"
	"github.com/xkilldash9x/ghostpay/internal/bus"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/diagnostics"
	"github.com/xkilldash9x/ghostpay/internal/engine"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/host/completion"
	"github.com/xkilldash9x/ghostpay/internal/host/navigation"
	"github.com/xkilldash9x/ghostpay/internal/observability"
)

const busBufferSize = 64

type payOptions struct {
	email    string
	phone    string
	url      string
	headless bool
	timeout  time.Duration
}

func newPayCmd(deps dependencies) *cobra.Command {
	var opts payOptions
	cmd := &cobra.Command{
		Use:   "pay <card-id> <amount>",
		Short: "Open the payment page and fill it with a stored card",
		Long: `Opens the bank payment page in Chrome and fills it with the chosen card.
The command returns once the page reaches its success URL, the timeout passes
or it is interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()

			if opts.url != "" {
				cfg.SetBrowserTargetURL(opts.url)
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(opts.headless)
			}

			req := app.PaymentRequest{CardID: args[0], Amount: args[1], Email: opts.email, Phone: opts.phone}
			return runPay(cmd.Context(), cfg, v, deps, req, opts.timeout, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "override the card's email")
	cmd.Flags().StringVar(&opts.phone, "phone", "", "override the card's phone")
	cmd.Flags().StringVar(&opts.url, "url", "", "payment page to open (default from config)")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "run Chrome without a window")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "give up after this long (0 waits until interrupted)")
	return cmd
}

// runPay wires the host side (bus, monitor, policy, controller) to the content side
// (diagnostics channel, engine) through one browser session.
func runPay(ctx context.Context, cfg config.Interface, store CardVault, deps dependencies, req app.PaymentRequest, timeout time.Duration, out io.Writer) error {
	logger := observability.GetLogger()

	events := bus.New(logger, busBufferSize)
	defer events.Shutdown()

	token := &generation.Token{}
	monitor := completion.New(cfg.Completion(), events, logger)
	controller := app.New(store, events, monitor, token, logger)
	policy := navigation.NewPolicy(cfg.Navigation(), deps.newDispatcher(cfg.Navigation().DispatchCommand, logger), controller, logger, controller.AttemptID)

	channel := diagnostics.NewChannel(cfg.Diagnostics().BufferSize)
	receiver := diagnostics.NewReceiver(cfg.Diagnostics(), logger, events)
	rctx, stopReceiver := context.WithCancel(ctx)
	received := make(chan struct{})
	go func() {
		defer close(received)
		_ = receiver.Run(rctx, channel.Messages())
	}()
	defer func() {
		stopReceiver()
		<-received
	}()

	eng := engine.New(cfg, channel, logger, engine.WithToken(token))
	session := deps.newSession(cfg.Browser(), policy, monitor, channel, eng, logger)

	if err := session.Open(ctx); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Browser did not close cleanly.", zap.Error(err))
		}
	}()

	stop := controller.Start(ctx)
	defer stop()

	attempt, err := controller.BeginPayment(ctx, req)
	if err != nil {
		return err
	}
	if err := session.Pay(ctx, attempt.Generation, attempt.FillContext); err != nil {
		_ = controller.Cancel()
		return fmt.Errorf("failed to load payment page: %w", err)
	}
	fmt.Fprintf(out, "Paying %s with card %s. Complete any OTP in the browser.\n", req.Amount, req.CardID)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var waitErr error
	select {
	case <-attempt.Done():
	case <-ctx.Done():
		waitErr = ctx.Err()
	case <-expired:
		waitErr = fmt.Errorf("payment not completed within %s", timeout)
	}
	if waitErr != nil {
		if err := controller.Cancel(); err != nil && !errors.Is(err, app.ErrNoAttempt) {
			logger.Warn("Could not cancel attempt.", zap.Error(err))
		}
	}
	session.End(context.WithoutCancel(ctx))

	for _, n := range controller.Notices() {
		fmt.Fprintf(out, "Notice: %s\n", n.Message)
	}
	outcome := attempt.Outcome()
	if outcome.Completed {
		tx := outcome.Completion.Transaction
		fmt.Fprintf(out, "Payment completed: %s %s at %s\n", tx.BankName, tx.Amount, tx.Timestamp.UTC().Format(time.RFC3339))
		return nil
	}
	fmt.Fprintln(out, "Payment cancelled.")
	return waitErr
}
