// File: cmd/deps.go
package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/browser"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/host/navigation"
	"github.com/xkilldash9x/ghostpay/internal/insights"
	"github.com/xkilldash9x/ghostpay/internal/vault"
)

// CardVault is the vault as the commands use it.
type CardVault interface {
	Cards(ctx context.Context) ([]schemas.CardRecord, error)
	AddCard(ctx context.Context, card schemas.CardRecord) (schemas.CardRecord, error)
	RemoveCard(ctx context.Context, id string) error
	Card(ctx context.Context, id string) (schemas.CardRecord, error)
	History(ctx context.Context) ([]schemas.TransactionRecord, error)
	AppendTransaction(ctx context.Context, tx schemas.TransactionRecord) error
}

// PaySession is the browser tab a payment runs in.
type PaySession interface {
	Open(ctx context.Context) error
	Pay(ctx context.Context, gen generation.Generation, fc schemas.FillContext) error
	End(ctx context.Context)
	Close(ctx context.Context) error
}

type (
	vaultOpener       func(ctx context.Context, cfg config.VaultConfig, logger *zap.Logger) (CardVault, func(), error)
	generatorFactory  func(ctx context.Context, cfg config.InsightsConfig, logger *zap.Logger) (insights.Generator, error)
	dispatcherFactory func(command string, logger *zap.Logger) navigation.Dispatcher
	sessionFactory    func(cfg config.BrowserConfig, policy browser.NavigationPolicy, monitor browser.CompletionObserver, mailbox browser.Mailbox, runner browser.Runner, logger *zap.Logger) PaySession
)

// dependencies are the seams the commands are tested through.
type dependencies struct {
	openVault     vaultOpener
	newGenerator  generatorFactory
	newDispatcher dispatcherFactory
	newSession    sessionFactory
}

func defaultDependencies() dependencies {
	return dependencies{
		openVault: func(ctx context.Context, cfg config.VaultConfig, logger *zap.Logger) (CardVault, func(), error) {
			v, closeFn, err := vault.Open(ctx, cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return v, closeFn, nil
		},
		newGenerator: func(ctx context.Context, cfg config.InsightsConfig, logger *zap.Logger) (insights.Generator, error) {
			g, err := insights.NewGeminiGenerator(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return g, nil
		},
		newDispatcher: func(command string, logger *zap.Logger) navigation.Dispatcher {
			return navigation.NewOSDispatcher(command, logger)
		},
		newSession: func(cfg config.BrowserConfig, policy browser.NavigationPolicy, monitor browser.CompletionObserver, mailbox browser.Mailbox, runner browser.Runner, logger *zap.Logger) PaySession {
			return browser.NewSession(cfg, policy, monitor, mailbox, runner, logger)
		},
	}
}
