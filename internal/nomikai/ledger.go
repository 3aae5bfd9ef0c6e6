package nomikai

import (
	"errors"
	"sort"
	"strings"

	"github.com/susu3304/warikan/internal/settlement"
)

// participants returns the session members in join order.
func (sess *Session) participants() []settlement.Participant {
	out := make([]settlement.Participant, 0, len(sess.Order))
	for _, uid := range sess.Order {
		out = append(out, settlement.Participant{ID: uid, Name: uid})
	}
	return out
}

type paymentGroup struct {
	id            string
	payerID       string
	amount        int64
	memos         []string
	beneficiaries []string
}

// expenses turns payments into engine expenses. Payments from the same payer
// for the same beneficiaries are merged first so that negative corrections
// cancel earlier entries. Groups whose targets carry no weight are skipped and
// counted.
func (sess *Session) expenses() ([]settlement.Expense, int, error) {
	var groups []*paymentGroup
	byKey := make(map[string]*paymentGroup)
	for _, pay := range sess.Payments {
		key := groupKey(pay.PayerID, pay.Beneficiaries)
		g, ok := byKey[key]
		if !ok {
			g = &paymentGroup{id: pay.ID, payerID: pay.PayerID, beneficiaries: pay.Beneficiaries}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.amount += pay.Amount
		if pay.Memo != "" {
			g.memos = append(g.memos, pay.Memo)
		}
	}
	netCorrections(groups)

	var out []settlement.Expense
	skipped := 0
	for _, g := range groups {
		if g.amount <= 0 {
			continue
		}
		targets := g.beneficiaries
		if len(targets) == 0 {
			targets = sess.Order
		}
		weights := make([]settlement.Weight, 0, len(targets))
		for _, uid := range targets {
			if p, ok := sess.Participants[uid]; ok {
				weights = append(weights, settlement.Weight{ParticipantID: uid, Weight: p.Weight})
			}
		}
		shares, err := settlement.Allocate(g.amount, g.payerID, weights, sess.Strategy)
		if errors.Is(err, settlement.ErrNoWeight) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		out = append(out, settlement.Expense{
			ID:      g.id,
			Title:   strings.Join(g.memos, ", "),
			Amount:  float64(g.amount),
			PayerID: g.payerID,
			Shares:  shares,
		})
	}
	return out, skipped, nil
}

// netCorrections moves a payer's negative group totals onto their other
// groups, newest first, so the positive totals add up to the payer's paid sum.
// AddPaymentFor keeps the paid sum non-negative, so every deficit is absorbed.
func netCorrections(groups []*paymentGroup) {
	deficit := make(map[string]int64)
	for _, g := range groups {
		if g.amount < 0 {
			deficit[g.payerID] -= g.amount
			g.amount = 0
		}
	}
	if len(deficit) == 0 {
		return
	}
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		d := deficit[g.payerID]
		if d == 0 || g.amount <= 0 {
			continue
		}
		take := min(d, g.amount)
		g.amount -= take
		deficit[g.payerID] = d - take
	}
}

func groupKey(payerID string, beneficiaries []string) string {
	if len(beneficiaries) == 0 {
		return payerID + "|*"
	}
	ben := append([]string(nil), beneficiaries...)
	sort.Strings(ben)
	return payerID + "|" + strings.Join(ben, ",")
}
