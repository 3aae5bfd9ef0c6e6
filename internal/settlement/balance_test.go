package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abc() []Participant {
	return []Participant{
		{ID: "a", Name: "Aki"},
		{ID: "b", Name: "Ben"},
		{ID: "c", Name: "Chika"},
	}
}

func evenDinner() Expense {
	return Expense{
		ID:      "e1",
		Title:   "dinner",
		Amount:  3000,
		PayerID: "a",
		Shares: []ExpenseShare{
			{ParticipantID: "a", Amount: 1000},
			{ParticipantID: "b", Amount: 1000},
			{ParticipantID: "c", Amount: 1000},
		},
	}
}

func diffs(bs []CalculatedBalance) []int64 {
	out := make([]int64, len(bs))
	for i, b := range bs {
		out[i] = b.Diff
	}
	return out
}

func TestCalculateBalances_EvenSplit(t *testing.T) {
	got := CalculateBalances(abc(), []Expense{evenDinner()})
	require.Len(t, got, 3)

	assert.Equal(t, "a", got[0].Participant.ID)
	assert.Equal(t, int64(3000), got[0].Paid)
	assert.Equal(t, int64(1000), got[0].ShouldPay)
	assert.Equal(t, []int64{2000, -1000, -1000}, diffs(got))
}

func TestCalculateBalances_NoOp(t *testing.T) {
	assert.Empty(t, CalculateBalances(nil, []Expense{evenDinner()}))

	got := CalculateBalances(abc(), nil)
	require.Len(t, got, 3)
	for _, b := range got {
		assert.Zero(t, b.Paid)
		assert.Zero(t, b.ShouldPay)
		assert.Zero(t, b.Diff)
	}
}

func TestCalculateBalances_SkipsNonPositiveExpenses(t *testing.T) {
	zero := evenDinner()
	zero.Amount = 0
	negative := evenDinner()
	negative.Amount = -3000
	nan := evenDinner()
	nan.Amount = math.NaN()

	got := CalculateBalances(abc(), []Expense{zero, negative, nan})
	assert.Equal(t, []int64{0, 0, 0}, diffs(got))
}

func TestRoundInt(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{2.5, 3},
		{-2.5, -3},
		{1499.4, 1499},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{1e19, 0},
		{-1e19, 0},
		{math.Ldexp(1, 63), 0},
		{-math.Ldexp(1, 63), math.MinInt64},
		{math.Ldexp(1, 62), 1 << 62},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundInt(tt.in), "roundInt(%v)", tt.in)
	}
}

func TestCalculateBalances_HugeAmountsDegrade(t *testing.T) {
	huge := Expense{
		ID: "big", Amount: 1e300, PayerID: "a",
		Shares: []ExpenseShare{{ParticipantID: "b", Amount: 1e300}},
	}
	got := CalculateBalances(abc(), []Expense{huge})
	assert.Equal(t, []int64{0, 0, 0}, diffs(got))
}

func TestCalculateBalances_UnknownIDsIgnored(t *testing.T) {
	expenses := []Expense{
		{
			ID: "e1", Amount: 500, PayerID: "ghost",
			Shares: []ExpenseShare{{ParticipantID: "a", Amount: 500}},
		},
		{
			ID: "e2", Amount: 900, PayerID: "b",
			Shares: []ExpenseShare{
				{ParticipantID: "b", Amount: 300},
				{ParticipantID: "removed", Amount: 300},
				{ParticipantID: "c", Amount: 300},
			},
		},
	}

	got := CalculateBalances(abc(), expenses)
	assert.Equal(t, []int64{-500, 600, -300}, diffs(got))
}

func TestCalculateBalances_RoundsAccumulatedSums(t *testing.T) {
	// Rounding each 0.4 would give zero; the accumulated 1.2 rounds to 1.
	var expenses []Expense
	for i := 0; i < 3; i++ {
		expenses = append(expenses, Expense{
			Amount: 0.4, PayerID: "a",
			Shares: []ExpenseShare{{ParticipantID: "b", Amount: 0.4}},
		})
	}

	got := CalculateBalances(abc(), expenses)
	assert.Equal(t, int64(1), got[0].Paid)
	assert.Equal(t, int64(1), got[1].ShouldPay)
	assert.Equal(t, []int64{1, -1, 0}, diffs(got))
}

func TestCalculateBalances_HalfRoundsUp(t *testing.T) {
	expenses := []Expense{{
		Amount: 2.5, PayerID: "a",
		Shares: []ExpenseShare{{ParticipantID: "b", Amount: 2.5}},
	}}

	got := CalculateBalances(abc(), expenses)
	assert.Equal(t, int64(3), got[0].Paid)
	assert.Equal(t, int64(3), got[1].ShouldPay)
}

func TestCalculateBalances_NonFiniteShareBecomesZero(t *testing.T) {
	expenses := []Expense{{
		Amount: 100, PayerID: "a",
		Shares: []ExpenseShare{{ParticipantID: "b", Amount: math.Inf(1)}},
	}}

	got := CalculateBalances(abc(), expenses)
	assert.Equal(t, int64(0), got[1].ShouldPay)
	assert.Equal(t, int64(100), got[0].Diff)
}

func TestCalculateBalances_ZeroSum(t *testing.T) {
	expenses := []Expense{
		evenDinner(),
		{
			Amount: 1000, PayerID: "c",
			Shares: []ExpenseShare{
				{ParticipantID: "a", Amount: 333.33},
				{ParticipantID: "b", Amount: 333.33},
				{ParticipantID: "c", Amount: 333.34},
			},
		},
	}

	var sum int64
	for _, b := range CalculateBalances(abc(), expenses) {
		sum += b.Diff
	}
	assert.LessOrEqual(t, abs(sum), int64(len(abc())))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
