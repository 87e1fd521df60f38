// File: cmd/script.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/shim"
)

func newScriptCmd(deps dependencies) *cobra.Command {
	var email, phone string
	cmd := &cobra.Command{
		Use:   "script <card-id> <amount>",
		Short: "Print the page script injected for a payment",
		Long: `Prints the self-contained script a payment injects into every document.
It reports page errors and checks a submitted form for the card number and amount.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := schemas.ValidateAmount(args[1]); err != nil {
				return err
			}
			card, err := v.Card(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			script, err := shim.BuildScript(schemas.NewFillContext(card, args[1], email, phone))
			if err != nil {
				return fmt.Errorf("failed to build script: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), script)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "override the card's email")
	cmd.Flags().StringVar(&phone, "phone", "", "override the card's phone")
	return cmd
}
