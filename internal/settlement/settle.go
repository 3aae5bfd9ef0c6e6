package settlement

type Options struct {
	// RoundingUnit snaps balances before planning. Zero disables rounding.
	RoundingUnit int64
}

type Result struct {
	Balances []CalculatedBalance `json:"balances"`
	Rounded  []RoundedBalance    `json:"rounded_balances,omitempty"`
	Plan     Plan                `json:"plan"`
}

// Settle runs the calculator, the optional rounding step and the planner.
func Settle(participants []Participant, expenses []Expense, opts Options) Result {
	res := Result{Balances: CalculateBalances(participants, expenses)}
	if opts.RoundingUnit > 0 {
		res.Rounded = RoundBalancesToUnit(res.Balances, opts.RoundingUnit)
		res.Plan = PlanSettlement(res.Rounded)
		return res
	}
	res.Plan = PlanSettlement(res.Balances)
	return res
}

// BalanceOf returns the balance for a participant id.
func (r Result) BalanceOf(id string) (CalculatedBalance, bool) {
	for _, b := range r.Balances {
		if b.Participant.ID == id {
			return b, true
		}
	}
	return CalculatedBalance{}, false
}
