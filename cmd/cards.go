// File: cmd/cards.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/observability"
)

// openVault loads the config from the command context and opens the configured vault.
func openVault(cmd *cobra.Command, deps dependencies) (config.Interface, CardVault, func(), error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	v, closeFn, err := deps.openVault(cmd.Context(), cfg.Vault(), observability.GetLogger())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open vault: %w", err)
	}
	return cfg, v, closeFn, nil
}

func newCardsCmd(deps dependencies) *cobra.Command {
	cardsCmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage the cards stored in the vault",
	}
	cardsCmd.AddCommand(newCardsAddCmd(deps), newCardsListCmd(deps), newCardsRemoveCmd(deps))
	return cardsCmd
}

func newCardsAddCmd(deps dependencies) *cobra.Command {
	var card schemas.CardRecord
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a new card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()
			return runCardsAdd(cmd.Context(), v, card, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&card.BankName, "bank", "", "issuing bank (default Axis)")
	cmd.Flags().StringVar(&card.Number, "number", "", "card number")
	cmd.Flags().StringVar(&card.Name, "name", "", "name on the card")
	cmd.Flags().StringVar(&card.Expiry, "expiry", "", "expiry as MM/YY")
	cmd.Flags().StringVar(&card.Email, "email", "", "email used on payment pages")
	cmd.Flags().StringVar(&card.Phone, "phone", "", "mobile number used on payment pages")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

func runCardsAdd(ctx context.Context, v CardVault, card schemas.CardRecord, out io.Writer) error {
	stored, err := v.AddCard(ctx, card)
	if err != nil {
		return err
	}
	observability.GetLogger().Info("Card stored.", zap.String("id", stored.ID), observability.Card(stored.Number))
	fmt.Fprintf(out, "Added card %s (%s %s)\n", stored.ID, stored.BankName, schemas.MaskNumber(stored.Number))
	return nil
}

func newCardsListCmd(deps dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()
			return runCardsList(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
}

func runCardsList(ctx context.Context, v CardVault, out io.Writer) error {
	cards, err := v.Cards(ctx)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Fprintln(out, "No cards stored.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBANK\tNUMBER\tNAME\tEXPIRY")
	for _, c := range cards {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.BankName, schemas.MaskNumber(c.Number), c.Name, c.Expiry)
	}
	return w.Flush()
}

func newCardsRemoveCmd(deps dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <card-id>",
		Short: "Remove a stored card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := v.RemoveCard(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed card %s\n", args[0])
			return nil
		},
	}
}
