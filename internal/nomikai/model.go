package nomikai

import (
	"time"

	"github.com/susu3304/warikan/internal/settlement"
)

type Session struct {
	ChannelID    string
	GuildID      int64
	EventID      int64 // 0 when the session is not persisted
	Active       bool
	Participants map[string]*Participant
	Order        []string // user IDs in join order
	Payments     []Payment
	Tasks        []SettlementTask
	RoundingUnit int64
	Strategy     settlement.RemainderStrategy
	// LastSettlement is nil until the session is settled once.
	LastSettlement *SettlementRecord
}

type Participant struct {
	UserID  string  `json:"user_id"`
	Weight  float64 `json:"weight"`
	PaidSum int64   `json:"paid"`
}

type Payment struct {
	ID            string
	PayerID       string
	Amount        int64
	Memo          string
	Beneficiaries []string // 空なら全参加者対象
}

type SettlementTask struct {
	PayerID   string `json:"payer_id"`
	PayeeID   string `json:"payee_id"`
	Amount    int64  `json:"amount"`
	Completed bool   `json:"completed"`
}

type SettleResult struct {
	Tasks   []SettlementTask
	Result  settlement.Result
	Skipped int // payments that could not be allocated
	Summary string
}

// SettlementRecord describes the settle run behind the current tasks.
type SettlementRecord struct {
	RoundingUnit      int64                        `json:"rounding_unit"`
	RemainderStrategy settlement.RemainderStrategy `json:"remainder_strategy"`
	UnmatchedCredit   int64                        `json:"unmatched_credit"`
	UnmatchedDebit    int64                        `json:"unmatched_debit"`
	Skipped           int                          `json:"skipped"`
	SettledAt         time.Time                    `json:"settled_at"`
}

// Balanced reports whether the run paired every credit with a debit.
func (r *SettlementRecord) Balanced() bool {
	return r.UnmatchedCredit == 0 && r.UnmatchedDebit == 0
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ChannelID         string                         `json:"channel_id"`
	GuildID           int64                          `json:"guild_id,string"`
	RoundingUnit      int64                          `json:"rounding_unit"`
	RemainderStrategy settlement.RemainderStrategy   `json:"remainder_strategy"`
	Members           []Participant                  `json:"members"`
	Balances          []settlement.CalculatedBalance `json:"balances"`
	PendingTasks      []SettlementTask               `json:"pending_tasks"`
	LastSettlement    *SettlementRecord              `json:"last_settlement,omitempty"`
}

// Defaults applies to sessions started without explicit rounding settings.
type Defaults struct {
	RoundingUnit int64
	Strategy     settlement.RemainderStrategy
}
