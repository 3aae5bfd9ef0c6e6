package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/susu3304/warikan/internal/settlement"
)

// Ledger is the YAML file settled by warikanctl.
type Ledger struct {
	Participants []settlement.Participant `yaml:"participants"`
	Expenses     []LedgerExpense          `yaml:"expenses"`
}

// LedgerExpense lists either explicit shares or weights. With neither, the
// amount is split evenly across all participants.
type LedgerExpense struct {
	ID      string             `yaml:"id"`
	Title   string             `yaml:"title"`
	Amount  int64              `yaml:"amount"`
	Payer   string             `yaml:"payer"`
	Shares  []LedgerShare      `yaml:"shares"`
	Weights map[string]float64 `yaml:"weights"`
}

type LedgerShare struct {
	Participant string  `yaml:"participant"`
	Amount      float64 `yaml:"amount"`
}

func LoadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return ParseLedger(data)
}

func ParseLedger(data []byte) (*Ledger, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var l Ledger
	if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing ledger: %w", err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

func (l *Ledger) validate() error {
	if len(l.Participants) == 0 {
		return errors.New("ledger has no participants")
	}
	known := make(map[string]bool, len(l.Participants))
	for i, p := range l.Participants {
		if p.ID == "" {
			return fmt.Errorf("participant %d has no id", i+1)
		}
		if known[p.ID] {
			return fmt.Errorf("duplicate participant %q", p.ID)
		}
		known[p.ID] = true
	}
	for i, e := range l.Expenses {
		name := e.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		if !known[e.Payer] {
			return fmt.Errorf("expense %s: unknown payer %q", name, e.Payer)
		}
		if len(e.Shares) > 0 && len(e.Weights) > 0 {
			return fmt.Errorf("expense %s: use either shares or weights", name)
		}
		for _, s := range e.Shares {
			if !known[s.Participant] {
				return fmt.Errorf("expense %s: unknown participant %q", name, s.Participant)
			}
		}
		for id := range e.Weights {
			if !known[id] {
				return fmt.Errorf("expense %s: unknown participant %q", name, id)
			}
		}
	}
	return nil
}

// EngineExpenses converts the ledger into settlement expenses, allocating
// weighted and even splits with strategy.
func (l *Ledger) EngineExpenses(strategy settlement.RemainderStrategy) ([]settlement.Expense, error) {
	out := make([]settlement.Expense, 0, len(l.Expenses))
	for i, e := range l.Expenses {
		exp := settlement.Expense{
			ID:      e.ID,
			Title:   e.Title,
			Amount:  float64(e.Amount),
			PayerID: e.Payer,
		}
		if exp.ID == "" {
			exp.ID = fmt.Sprintf("e%d", i+1)
		}

		switch {
		case len(e.Shares) > 0:
			for _, s := range e.Shares {
				exp.Shares = append(exp.Shares, settlement.ExpenseShare{ParticipantID: s.Participant, Amount: s.Amount})
			}
		case e.Amount <= 0:
			// Not counted by the calculator, nothing to allocate.
		default:
			shares, err := settlement.Allocate(e.Amount, e.Payer, l.weightsFor(e), strategy)
			if err != nil {
				return nil, fmt.Errorf("expense %s: %w", exp.ID, err)
			}
			exp.Shares = shares
		}
		out = append(out, exp)
	}
	return out, nil
}

// weightsFor orders weights by participant order.
func (l *Ledger) weightsFor(e LedgerExpense) []settlement.Weight {
	if len(e.Weights) == 0 {
		ids := make([]string, len(l.Participants))
		for i, p := range l.Participants {
			ids[i] = p.ID
		}
		return settlement.EqualWeights(ids)
	}
	pos := make(map[string]int, len(l.Participants))
	for i, p := range l.Participants {
		pos[p.ID] = i
	}
	ws := make([]settlement.Weight, 0, len(e.Weights))
	for id, w := range e.Weights {
		ws = append(ws, settlement.Weight{ParticipantID: id, Weight: w})
	}
	sort.Slice(ws, func(i, j int) bool { return pos[ws[i].ParticipantID] < pos[ws[j].ParticipantID] })
	return ws
}
