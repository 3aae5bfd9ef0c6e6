package nomikai

import (
	"fmt"
	"strings"

	"github.com/susu3304/warikan/internal/db"
	"github.com/susu3304/warikan/internal/settlement"
)

func formatTasks(header string, tasks []SettlementTask) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		fmt.Fprintf(&b, "<@%s> → <@%s>: %d 円\n", t.PayerID, t.PayeeID, t.Amount)
	}
	return b.String()
}

func tasksFromRows(rows []db.SettlementTaskRow) []SettlementTask {
	out := make([]SettlementTask, 0, len(rows))
	for _, r := range rows {
		out = append(out, SettlementTask{PayerID: r.PayerID, PayeeID: r.PayeeID, Amount: r.Amount})
	}
	return out
}

func rowsFromTasks(tasks []SettlementTask) []db.SettlementTaskRow {
	out := make([]db.SettlementTaskRow, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, db.SettlementTaskRow{PayerID: t.PayerID, PayeeID: t.PayeeID, Amount: t.Amount})
	}
	return out
}

func recordFromRun(run *db.SettlementRun, fallback settlement.RemainderStrategy) *SettlementRecord {
	if run == nil {
		return nil
	}
	strategy, err := settlement.ParseRemainderStrategy(run.RemainderStrategy)
	if err != nil {
		strategy = fallback
	}
	return &SettlementRecord{
		RoundingUnit:      run.RoundingUnit,
		RemainderStrategy: strategy,
		UnmatchedCredit:   run.UnmatchedCredit,
		UnmatchedDebit:    run.UnmatchedDebit,
		Skipped:           run.Skipped,
		SettledAt:         run.SettledAt,
	}
}

func runFromRecord(rec *SettlementRecord) db.SettlementRun {
	return db.SettlementRun{
		RoundingUnit:      rec.RoundingUnit,
		RemainderStrategy: string(rec.RemainderStrategy),
		UnmatchedCredit:   rec.UnmatchedCredit,
		UnmatchedDebit:    rec.UnmatchedDebit,
		Skipped:           rec.Skipped,
		SettledAt:         rec.SettledAt,
	}
}

// formatRecord renders the last settle run for Status.
func formatRecord(b *strings.Builder, rec *SettlementRecord) {
	fmt.Fprintf(b, "前回の精算: 端数単位 %d 円 (%s)\n", rec.RoundingUnit, rec.RemainderStrategy)
	if !rec.Balanced() {
		fmt.Fprintf(b, "未割当: 受取 %d 円 / 支払 %d 円\n", rec.UnmatchedCredit, rec.UnmatchedDebit)
	}
	if rec.Skipped > 0 {
		fmt.Fprintf(b, "割り当てられなかった支払い: %d 件\n", rec.Skipped)
	}
}

func pendingCount(tasks []SettlementTask) int {
	n := 0
	for _, t := range tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}
