package settlement

type cursorEntry struct {
	id        string
	remaining int64
}

// BuildSettlementPlan matches debtors to creditors in input order and returns
// the transfers. Use PlanSettlement to also see unmatched amounts.
func BuildSettlementPlan[B NetBalance](balances []B) []SettlementEntry {
	return PlanSettlement(balances).Entries
}

// PlanSettlement walks creditors and debtors with one cursor each, always
// moving min(debt, credit). The walk stops as soon as one side runs out;
// whatever is left on the other side is reported on the Plan.
func PlanSettlement[B NetBalance](balances []B) Plan {
	var creditors, debtors []cursorEntry
	for _, b := range balances {
		switch net := b.Net(); {
		case net > 0:
			creditors = append(creditors, cursorEntry{id: b.ParticipantID(), remaining: net})
		case net < 0:
			debtors = append(debtors, cursorEntry{id: b.ParticipantID(), remaining: -net})
		}
	}

	plan := Plan{Entries: []SettlementEntry{}}
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d := &debtors[i]
		c := &creditors[j]
		amount := min(d.remaining, c.remaining)
		if amount > 0 && d.id != c.id {
			plan.Entries = append(plan.Entries, SettlementEntry{From: d.id, To: c.id, Amount: amount})
		}
		d.remaining -= amount
		c.remaining -= amount
		if d.remaining == 0 {
			i++
		}
		if c.remaining == 0 {
			j++
		}
	}

	for ; i < len(debtors); i++ {
		plan.UnmatchedDebit += debtors[i].remaining
	}
	for ; j < len(creditors); j++ {
		plan.UnmatchedCredit += creditors[j].remaining
	}
	return plan
}
