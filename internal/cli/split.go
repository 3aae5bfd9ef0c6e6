package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/susu3304/warikan/internal/settlement"
)

func newSplitCommand() *cobra.Command {
	var amount int64
	var weights string
	var payer string
	var strategy string

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split an amount by weights into whole units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := parseWeights(weights)
			if err != nil {
				return err
			}
			st, err := settlement.ParseRemainderStrategy(strategy)
			if err != nil {
				return err
			}
			shares, err := settlement.Allocate(amount, payer, ws, st)
			if err != nil {
				return err
			}
			for _, s := range shares {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", s.ParticipantID, int64(s.Amount))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "amount to split (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&weights, "weights", "", "comma separated id=weight pairs, e.g. a=1,b=2 (required)")
	_ = cmd.MarkFlagRequired("weights")
	cmd.Flags().StringVar(&payer, "payer", "", "payer id, used by the payer strategy")
	cmd.Flags().StringVar(&strategy, "strategy", string(settlement.RemainderLargest), "remainder strategy (largest, payer, first)")

	return cmd
}

// parseWeights reads "a=1,b=2". A bare id counts as weight 1.
func parseWeights(s string) ([]settlement.Weight, error) {
	var out []settlement.Weight
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, raw, found := strings.Cut(part, "=")
		id = strings.TrimSpace(id)
		w := 1.0
		if found {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid weight for %q: %w", id, err)
			}
			w = v
		}
		if id == "" {
			return nil, fmt.Errorf("missing id in %q", part)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate id %q", id)
		}
		seen[id] = true
		out = append(out, settlement.Weight{ParticipantID: id, Weight: w})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no weights given")
	}
	return out, nil
}
