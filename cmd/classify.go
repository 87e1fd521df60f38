// File: cmd/classify.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ghostpay/internal/host/navigation"
	"github.com/xkilldash9x/ghostpay/internal/observability"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <url>...",
		Short: "Show how the navigation policy treats each URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			// Classify never dispatches, so no dispatcher or notifier is needed.
			policy := navigation.NewPolicy(cfg.Navigation(), nil, nil, observability.GetLogger(), nil)
			for _, u := range args {
				ev := policy.Classify(u)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ev.Classification, ev.URL)
			}
			return nil
		},
	}
}
