package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/susu3304/warikan/internal/settlement"
)

func newSettleCommand() *cobra.Command {
	var unit int64
	var asJSON bool
	var strategy string

	cmd := &cobra.Command{
		Use:   "settle <ledger.yaml>",
		Short: "Print balances and the transfers that settle a ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unit < 0 {
				return fmt.Errorf("--unit must not be negative")
			}
			st, err := settlement.ParseRemainderStrategy(strategy)
			if err != nil {
				return err
			}
			ledger, err := LoadLedger(args[0])
			if err != nil {
				return err
			}
			expenses, err := ledger.EngineExpenses(st)
			if err != nil {
				return err
			}

			res := settlement.Settle(ledger.Participants, expenses, settlement.Options{RoundingUnit: unit})
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), ledger.Participants, res)
			return nil
		},
	}

	cmd.Flags().Int64Var(&unit, "unit", 0, "round balances to this unit before planning (0 disables)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&strategy, "strategy", string(settlement.RemainderLargest), "remainder strategy for weighted splits (largest, payer, first)")

	return cmd
}

func printResult(w io.Writer, participants []settlement.Participant, res settlement.Result) {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
		if p.Name == "" {
			names[p.ID] = p.ID
		}
	}

	fmt.Fprintln(w, "Balances:")
	for i, b := range res.Balances {
		fmt.Fprintf(w, "  %-12s paid=%d share=%d diff=%+d", names[b.Participant.ID], b.Paid, b.ShouldPay, b.Diff)
		if res.Rounded != nil {
			fmt.Fprintf(w, " rounded=%+d", res.Rounded[i].RoundedDiff)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Settlements:")
	if len(res.Plan.Entries) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, e := range res.Plan.Entries {
		fmt.Fprintf(w, "  %s -> %s: %d\n", names[e.From], names[e.To], e.Amount)
	}
	if !res.Plan.Balanced() {
		fmt.Fprintf(w, "Unmatched: credit=%d debit=%d\n", res.Plan.UnmatchedCredit, res.Plan.UnmatchedDebit)
	}
}
