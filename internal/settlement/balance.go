package settlement

import "math"

type ledgerEntry struct {
	participant Participant
	paid        float64
	shouldPay   float64
}

// CalculateBalances reduces expenses into one balance per participant, in the
// order the participants were given. Paid and owed amounts are summed as floats
// and rounded once at the end.
func CalculateBalances(participants []Participant, expenses []Expense) []CalculatedBalance {
	ledger := make([]ledgerEntry, len(participants))
	index := make(map[string]int, len(participants))
	for i, p := range participants {
		ledger[i] = ledgerEntry{participant: p}
		if _, dup := index[p.ID]; !dup {
			index[p.ID] = i
		}
	}

	for _, e := range expenses {
		if !(e.Amount > 0) {
			continue
		}
		if i, ok := index[e.PayerID]; ok {
			ledger[i].paid += e.Amount
		}
		for _, s := range e.Shares {
			if i, ok := index[s.ParticipantID]; ok {
				ledger[i].shouldPay += s.Amount
			}
		}
	}

	out := make([]CalculatedBalance, len(ledger))
	for i, l := range ledger {
		paid := roundInt(l.paid)
		shouldPay := roundInt(l.shouldPay)
		out[i] = CalculatedBalance{
			Participant: l.participant,
			Paid:        paid,
			ShouldPay:   shouldPay,
			Diff:        paid - shouldPay,
		}
	}
	return out
}

// int64Limit is 2^63, the first magnitude an int64 cannot hold.
const int64Limit = float64(1 << 63)

// roundInt rounds half away from zero. NaN, infinities and values outside the
// int64 range become 0.
func roundInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	r := math.Round(f)
	if r >= int64Limit || r < -int64Limit {
		return 0
	}
	return int64(r)
}
