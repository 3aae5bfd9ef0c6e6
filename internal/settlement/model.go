package settlement

type Participant struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ExpenseShare is the amount one participant owes for an expense.
type ExpenseShare struct {
	ParticipantID string  `json:"participant_id"`
	Amount        float64 `json:"amount"`
}

type Expense struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Amount  float64        `json:"amount"`
	PayerID string         `json:"payer_id"`
	Shares  []ExpenseShare `json:"shares"`
}

// CalculatedBalance is one participant's position across all expenses.
// Diff > 0 means the participant is owed money, Diff < 0 means they owe.
type CalculatedBalance struct {
	Participant Participant `json:"participant"`
	Paid        int64       `json:"paid"`
	ShouldPay   int64       `json:"should_pay"`
	Diff        int64       `json:"diff"`
}

func (b CalculatedBalance) ParticipantID() string { return b.Participant.ID }
func (b CalculatedBalance) Net() int64            { return b.Diff }

type RoundedBalance struct {
	CalculatedBalance
	RoundedDiff int64 `json:"rounded_diff"`
}

func (b RoundedBalance) Net() int64 { return b.RoundedDiff }

// NetBalance is what the planner needs from a balance.
type NetBalance interface {
	ParticipantID() string
	Net() int64
}

type SettlementEntry struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Plan is a settlement plan together with whatever the greedy walk could not
// match. Both residuals are zero when the input balances sum to zero.
type Plan struct {
	Entries         []SettlementEntry `json:"entries"`
	UnmatchedCredit int64             `json:"unmatched_credit"`
	UnmatchedDebit  int64             `json:"unmatched_debit"`
}

// Balanced reports whether every balance was matched.
func (p Plan) Balanced() bool {
	return p.UnmatchedCredit == 0 && p.UnmatchedDebit == 0
}
