// File: cmd/insights.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ghostpay/internal/insights"
	"github.com/xkilldash9x/ghostpay/internal/observability"
)

func newInsightsCmd(deps dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Ask the model for advice on the stored card portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()

			cards, err := v.Cards(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			gen, err := deps.newGenerator(cmd.Context(), cfg.Insights(), logger)
			if err != nil {
				return err
			}
			// On a model failure Portfolio still returns the fallback text; the advisor logs the cause.
			text, _ := insights.NewAdvisor(gen, logger).Portfolio(cmd.Context(), cards)
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
