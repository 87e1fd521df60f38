// File: cmd/dryrun.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/bus"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/diagnostics"
	"github.com/xkilldash9x/ghostpay/internal/dom/htmldoc"
	"github.com/xkilldash9x/ghostpay/internal/engine"
	"github.com/xkilldash9x/ghostpay/internal/filler"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/observability"
)

type dryRunOptions struct {
	linger  time.Duration
	instant bool
	render  bool
}

func newDryRunCmd(deps dependencies) *cobra.Command {
	var (
		email, phone string
		opts         dryRunOptions
	)
	cmd := &cobra.Command{
		Use:   "dryrun <html-file> <card-id> <amount>",
		Short: "Run the filler against a saved payment page without a browser",
		Long: `Parses a saved payment page, runs the automation against it and prints the
resulting form fields. With --linger the alternate-path poller keeps running for
that long after the fill finishes.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.instant && opts.linger > 0 {
				return errors.New("--instant cannot be combined with --linger")
			}
			cfg, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := schemas.ValidateAmount(args[2]); err != nil {
				return err
			}
			card, err := v.Card(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open page: %w", err)
			}
			defer f.Close()
			doc, err := htmldoc.Parse(f)
			if err != nil {
				return fmt.Errorf("failed to parse page: %w", err)
			}

			fc := schemas.NewFillContext(card, args[2], email, phone)
			return runDryRun(cmd.Context(), cfg, doc, fc, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "override the card's email")
	cmd.Flags().StringVar(&phone, "phone", "", "override the card's phone")
	cmd.Flags().DurationVar(&opts.linger, "linger", 0, "keep the poller running this long after the fill")
	cmd.Flags().BoolVar(&opts.instant, "instant", false, "skip keystroke and retry delays")
	cmd.Flags().BoolVar(&opts.render, "render", false, "print the filled document")
	return cmd
}

// printPublisher writes every diagnostic the receiver accepts to out.
type printPublisher struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printPublisher) Post(_ context.Context, topic bus.Topic, payload interface{}) error {
	msg, ok := payload.(schemas.DiagnosticMessage)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", topic, payload)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "%s: %s\n", topic, msg.Msg)
	return err
}

func runDryRun(ctx context.Context, cfg config.Interface, doc *htmldoc.Document, fc schemas.FillContext, opts dryRunOptions, out io.Writer) error {
	logger := observability.GetLogger()
	if opts.linger <= 0 {
		cfg.SetPollerEnabled(false)
	}

	channel := diagnostics.NewChannel(cfg.Diagnostics().BufferSize)
	receiver := diagnostics.NewReceiver(cfg.Diagnostics(), logger, &printPublisher{out: out})

	rctx, stopReceiver := context.WithCancel(ctx)
	received := make(chan struct{})
	go func() {
		defer close(received)
		_ = receiver.Run(rctx, channel.Messages())
	}()

	engineOpts := []engine.Option{}
	if opts.instant {
		engineOpts = append(engineOpts, engine.WithSleeper(generation.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		})))
	}
	eng := engine.New(cfg, channel, logger, engineOpts...)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	var (
		report filler.Report
		filled bool
	)
	err := eng.Run(runCtx, doc, fc, func(r filler.Report) {
		report, filled = r, true
		if opts.linger > 0 {
			time.AfterFunc(opts.linger, cancelRun)
		}
	})

	stopReceiver()
	<-received
	// Anything still queued was emitted before the run ended.
	for drained := false; !drained; {
		select {
		case payload := <-channel.Messages():
			receiver.Handle(ctx, payload)
		default:
			drained = true
		}
	}

	if err != nil {
		return fmt.Errorf("automation failed: %w", err)
	}
	if !filled {
		fmt.Fprintln(out, "Run ended before the form was filled.")
	} else {
		printReport(out, report)
	}
	if err := printFields(out, doc.Fields(), fc.Card.Number); err != nil {
		return err
	}
	if opts.render {
		return doc.Render(out)
	}
	return nil
}

func printReport(out io.Writer, r filler.Report) {
	fmt.Fprintf(out, "Layout: %s\n", r.Layout)
	if r.Network != "" {
		fmt.Fprintf(out, "Network: %s\n", r.Network)
	}
	fmt.Fprintf(out, "Filled: %s\n", joinRoles(r.Filled))
	if len(r.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped: %s\n", joinRoles(r.Skipped))
	}
}

// printFields lists the form controls. A control holding the whole card number is masked.
func printFields(out io.Writer, fields []htmldoc.Field, number string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTYPE\tVALUE")
	for _, f := range fields {
		name := f.Name
		if name == "" {
			name = f.XPath
		}
		value := f.Value
		if number != "" && strings.ReplaceAll(value, " ", "") == number {
			value = schemas.MaskNumber(number)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, f.Type, value)
	}
	return w.Flush()
}

func joinRoles(roles []schemas.Role) string {
	if len(roles) == 0 {
		return "-"
	}
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
