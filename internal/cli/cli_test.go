package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikan/internal/settlement"
)

const partyLedger = `
participants:
  - {id: a, name: Alice}
  - {id: b, name: Bob}
  - {id: c, name: Carol}
expenses:
  - id: dinner
    amount: 3000
    payer: a
  - id: taxi
    amount: 1000
    payer: b
    weights: {c: 1, b: 1}
  - id: drinks
    amount: 600
    payer: c
    shares:
      - {participant: a, amount: 300}
      - {participant: c, amount: 300}
`

func writeLedger(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSettle_Text(t *testing.T) {
	out, err := run(t, "settle", writeLedger(t, partyLedger))
	require.NoError(t, err)

	assert.Contains(t, out, "paid=3000 share=1300 diff=+1700")
	assert.Contains(t, out, "paid=1000 share=1500 diff=-500")
	assert.Contains(t, out, "paid=600 share=1800 diff=-1200")
	assert.Contains(t, out, "  Bob -> Alice: 500\n")
	assert.Contains(t, out, "  Carol -> Alice: 1200\n")
	assert.NotContains(t, out, "Unmatched")
}

func TestSettle_JSONWithUnit(t *testing.T) {
	out, err := run(t, "settle", writeLedger(t, partyLedger), "--unit", "1000", "--json")
	require.NoError(t, err)

	var res settlement.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Rounded, 3)
	assert.Equal(t, int64(2000), res.Rounded[0].RoundedDiff)
	assert.Equal(t, int64(-1000), res.Rounded[1].RoundedDiff)
	assert.Equal(t, int64(-1000), res.Rounded[2].RoundedDiff)
	assert.Equal(t, []settlement.SettlementEntry{
		{From: "b", To: "a", Amount: 1000},
		{From: "c", To: "a", Amount: 1000},
	}, res.Plan.Entries)
}

func TestSettle_Errors(t *testing.T) {
	_, err := run(t, "settle", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = run(t, "settle", writeLedger(t, partyLedger), "--unit", "-1")
	assert.Error(t, err)

	_, err = run(t, "settle", writeLedger(t, partyLedger), "--strategy", "dice")
	assert.ErrorIs(t, err, settlement.ErrUnknownStrategy)
}

func TestSplit(t *testing.T) {
	out, err := run(t, "split", "--amount", "1000", "--weights", "a=1,b=1,c=1", "--payer", "b", "--strategy", "payer")
	require.NoError(t, err)
	assert.Equal(t, "a\t333\nb\t334\nc\t333\n", out)

	out, err = run(t, "split", "--amount", "1000", "--weights", "a=1,b=1,c=1")
	require.NoError(t, err)
	assert.Equal(t, "a\t334\nb\t333\nc\t333\n", out)
}

func TestSplit_Errors(t *testing.T) {
	_, err := run(t, "split", "--amount", "100")
	assert.Error(t, err)

	_, err = run(t, "split", "--amount", "100", "--weights", "a=0")
	assert.ErrorIs(t, err, settlement.ErrNoWeight)

	_, err = run(t, "split", "--amount", "-1", "--weights", "a=1")
	assert.ErrorIs(t, err, settlement.ErrNegativeAmount)
}

func TestParseWeights(t *testing.T) {
	ws, err := parseWeights(" a=2, b ,c=0.5,")
	require.NoError(t, err)
	assert.Equal(t, []settlement.Weight{
		{ParticipantID: "a", Weight: 2},
		{ParticipantID: "b", Weight: 1},
		{ParticipantID: "c", Weight: 0.5},
	}, ws)

	for _, bad := range []string{"", "a=x", "=1", "a=1,a=2"} {
		_, err := parseWeights(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLedger_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no participants", "expenses: []\n"},
		{"missing id", "participants: [{name: x}]\n"},
		{"duplicate id", "participants: [{id: a}, {id: a}]\n"},
		{"unknown payer", "participants: [{id: a}]\nexpenses: [{amount: 1, payer: z}]\n"},
		{"unknown share", "participants: [{id: a}]\nexpenses: [{amount: 1, payer: a, shares: [{participant: z, amount: 1}]}]\n"},
		{"unknown weight", "participants: [{id: a}]\nexpenses: [{amount: 1, payer: a, weights: {z: 1}}]\n"},
		{"shares and weights", "participants: [{id: a}]\nexpenses: [{amount: 1, payer: a, weights: {a: 1}, shares: [{participant: a, amount: 1}]}]\n"},
		{"unknown field", "participants: [{id: a}]\ncolour: red\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLedger([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLedger_WeightsFollowParticipantOrder(t *testing.T) {
	l, err := ParseLedger([]byte(partyLedger))
	require.NoError(t, err)

	expenses, err := l.EngineExpenses(settlement.RemainderLargest)
	require.NoError(t, err)
	require.Len(t, expenses, 3)
	assert.Equal(t, []settlement.ExpenseShare{
		{ParticipantID: "b", Amount: 500},
		{ParticipantID: "c", Amount: 500},
	}, expenses[1].Shares)
}
