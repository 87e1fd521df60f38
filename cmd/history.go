// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(deps dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show completed payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, v, closeFn, err := openVault(cmd, deps)
			if err != nil {
				return err
			}
			defer closeFn()
			return runHistory(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
}

func runHistory(ctx context.Context, v CardVault, out io.Writer) error {
	txs, err := v.History(ctx)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(out, "No payments recorded.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tBANK\tAMOUNT")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", tx.Timestamp.UTC().Format(time.RFC3339), tx.BankName, tx.Amount)
	}
	return w.Flush()
}
