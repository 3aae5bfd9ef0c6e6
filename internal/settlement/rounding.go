package settlement

const DefaultRoundingUnit int64 = 100

// RoundBalancesToUnit snaps every Diff to a multiple of unit and then moves
// the accumulated drift onto a single balance so the rounded values sum to
// zero. A non-positive unit falls back to DefaultRoundingUnit.
func RoundBalancesToUnit(balances []CalculatedBalance, unit int64) []RoundedBalance {
	if unit <= 0 {
		unit = DefaultRoundingUnit
	}

	out := make([]RoundedBalance, len(balances))
	var total int64
	for i, b := range balances {
		rounded := roundInt(float64(b.Diff)/float64(unit)) * unit
		out[i] = RoundedBalance{CalculatedBalance: b, RoundedDiff: rounded}
		total += rounded
	}

	if total == 0 || len(out) == 0 {
		return out
	}

	// First maximum when the drift is positive, first minimum when negative.
	target := 0
	for i := 1; i < len(out); i++ {
		if total > 0 && out[i].RoundedDiff > out[target].RoundedDiff {
			target = i
		}
		if total < 0 && out[i].RoundedDiff < out[target].RoundedDiff {
			target = i
		}
	}
	out[target].RoundedDiff -= total
	return out
}
