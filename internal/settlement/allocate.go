package settlement

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type RemainderStrategy string

const (
	// RemainderLargest gives leftover units to the largest fractional parts.
	RemainderLargest RemainderStrategy = "largest"
	// RemainderPayer gives every leftover unit to the payer.
	RemainderPayer RemainderStrategy = "payer"
	// RemainderFirst gives leftover units to the weights in order.
	RemainderFirst RemainderStrategy = "first"
)

var (
	ErrNoWeight        = errors.New("settlement: total weight is zero")
	ErrNegativeAmount  = errors.New("settlement: amount must not be negative")
	ErrUnknownStrategy = errors.New("settlement: unknown remainder strategy")
)

type Weight struct {
	ParticipantID string  `json:"participant_id"`
	Weight        float64 `json:"weight"`
}

func ParseRemainderStrategy(s string) (RemainderStrategy, error) {
	switch RemainderStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RemainderLargest:
		return RemainderLargest, nil
	case RemainderPayer:
		return RemainderPayer, nil
	case RemainderFirst:
		return RemainderFirst, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// EqualWeights gives every id weight 1.
func EqualWeights(ids []string) []Weight {
	out := make([]Weight, len(ids))
	for i, id := range ids {
		out[i] = Weight{ParticipantID: id, Weight: 1}
	}
	return out
}

// Allocate splits a whole amount across weights. Each share is the floor of its
// exact proportional part; the units lost to flooring are then handed out
// according to strategy, so the shares always add up to amount.
func Allocate(amount int64, payerID string, weights []Weight, strategy RemainderStrategy) ([]ExpenseShare, error) {
	if amount < 0 {
		return nil, ErrNegativeAmount
	}

	total := decimal.Zero
	ws := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		if w.Weight > 0 {
			ws[i] = decimal.NewFromFloat(w.Weight)
			total = total.Add(ws[i])
		} else {
			ws[i] = decimal.Zero
		}
	}
	if total.IsZero() {
		return nil, ErrNoWeight
	}

	// amount*w = q*total + r exactly; q is the floored share and r, all
	// sharing the divisor total, orders the fractional parts.
	amt := decimal.NewFromInt(amount)
	base := make([]int64, len(weights))
	frac := make([]decimal.Decimal, len(weights))
	var allocated int64
	for i := range weights {
		q, r := amt.Mul(ws[i]).QuoRem(total, 0)
		base[i] = q.IntPart()
		frac[i] = r
		allocated += base[i]
	}

	remainder := amount - allocated
	if remainder > 0 {
		for _, i := range remainderOrder(payerID, weights, ws, frac, strategy) {
			if remainder == 0 {
				break
			}
			base[i]++
			remainder--
		}
	}

	shares := make([]ExpenseShare, len(weights))
	for i, w := range weights {
		shares[i] = ExpenseShare{ParticipantID: w.ParticipantID, Amount: float64(base[i])}
	}
	return shares, nil
}

// remainderOrder lists the indexes that receive leftover units, in the order
// they receive them. The list cycles so it is never shorter than needed.
func remainderOrder(payerID string, weights []Weight, ws, frac []decimal.Decimal, strategy RemainderStrategy) []int {
	var eligible []int
	for i := range weights {
		if ws[i].IsPositive() {
			eligible = append(eligible, i)
		}
	}

	switch strategy {
	case RemainderPayer:
		for _, i := range eligible {
			if weights[i].ParticipantID == payerID {
				return repeatIndex(i, len(weights))
			}
		}
	case RemainderFirst:
		return cycle(eligible, len(weights))
	}

	sort.SliceStable(eligible, func(a, b int) bool {
		return frac[eligible[a]].GreaterThan(frac[eligible[b]])
	})
	return cycle(eligible, len(weights))
}

func repeatIndex(i, n int) []int {
	out := make([]int, n)
	for k := range out {
		out[k] = i
	}
	return out
}

func cycle(idx []int, n int) []int {
	if len(idx) == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for len(out) < n {
		out = append(out, idx...)
	}
	return out
}
