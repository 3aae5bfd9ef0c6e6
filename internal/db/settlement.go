package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNoOpenTask is returned when a settlement payment names a pair without
// any open task.
var ErrNoOpenTask = errors.New("no open settlement task for pair")

type SettlementTaskRow struct {
	PayerID string `db:"payer_id"`
	PayeeID string `db:"payee_id"`
	Amount  int64  `db:"amount"`
}

// SettlementRun records how the current task list was produced. Unmatched
// amounts are what the planner could not pair up.
type SettlementRun struct {
	RoundingUnit      int64     `db:"rounding_unit"`
	RemainderStrategy string    `db:"remainder_strategy"`
	UnmatchedCredit   int64     `db:"unmatched_credit"`
	UnmatchedDebit    int64     `db:"unmatched_debit"`
	Skipped           int       `db:"skipped"`
	SettledAt         time.Time `db:"settled_at"`
}

// SaveSettlement replaces the event's tasks with a new plan and records the
// run that produced it. Rows without an amount or a party are dropped.
func (db *DB) SaveSettlement(ctx context.Context, eventID int64, run SettlementRun, tasks []SettlementTaskRow) error {
	if run.SettledAt.IsZero() {
		run.SettledAt = time.Now()
	}
	payers, payees, amounts := taskColumns(tasks)

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM nomikai_settlement_tasks WHERE event_id = $1`, eventID)
	batch.Queue(
		`INSERT INTO nomikai_settlement_tasks (event_id, payer_id, payee_id, amount)
		 SELECT $1, t.payer_id, t.payee_id, t.amount
		 FROM unnest($2::text[], $3::text[], $4::bigint[]) WITH ORDINALITY AS t(payer_id, payee_id, amount, ord)
		 ORDER BY t.ord`,
		eventID, payers, payees, amounts,
	)
	batch.Queue(
		`INSERT INTO nomikai_settlement_runs
			(event_id, rounding_unit, remainder_strategy, unmatched_credit, unmatched_debit, skipped, settled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (event_id) DO UPDATE
		 SET rounding_unit = EXCLUDED.rounding_unit,
			 remainder_strategy = EXCLUDED.remainder_strategy,
			 unmatched_credit = EXCLUDED.unmatched_credit,
			 unmatched_debit = EXCLUDED.unmatched_debit,
			 skipped = EXCLUDED.skipped,
			 settled_at = EXCLUDED.settled_at`,
		eventID, run.RoundingUnit, run.RemainderStrategy, run.UnmatchedCredit, run.UnmatchedDebit, run.Skipped, run.SettledAt,
	)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func taskColumns(tasks []SettlementTaskRow) (payers, payees []string, amounts []int64) {
	payers = make([]string, 0, len(tasks))
	payees = make([]string, 0, len(tasks))
	amounts = make([]int64, 0, len(tasks))
	for _, t := range tasks {
		if t.Amount <= 0 || t.PayerID == "" || t.PayeeID == "" {
			continue
		}
		payers = append(payers, t.PayerID)
		payees = append(payees, t.PayeeID)
		amounts = append(amounts, t.Amount)
	}
	return payers, payees, amounts
}

// LatestSettlementRun returns nil without error before the first settle run.
func (db *DB) LatestSettlementRun(ctx context.Context, eventID int64) (*SettlementRun, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT rounding_unit, remainder_strategy, unmatched_credit, unmatched_debit, skipped, settled_at
		 FROM nomikai_settlement_runs
		 WHERE event_id = $1`,
		eventID,
	)
	run, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[SettlementRun])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (db *DB) ListPendingSettlementTasks(ctx context.Context, eventID int64) ([]SettlementTaskRow, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT payer_id, payee_id, amount
		 FROM nomikai_settlement_tasks
		 WHERE event_id = $1 AND NOT completed
		 ORDER BY id`,
		eventID,
	)
	return pgx.CollectRows(rows, pgx.RowToStructByName[SettlementTaskRow])
}

// CompleteSettlementTask closes the oldest open task between two users in
// either direction and returns it, or nil when there was none.
func (db *DB) CompleteSettlementTask(ctx context.Context, eventID int64, userA, userB string) (*SettlementTaskRow, error) {
	rows, _ := db.pool.Query(ctx,
		`UPDATE nomikai_settlement_tasks
		 SET completed = TRUE, completed_at = CURRENT_TIMESTAMP
		 WHERE id = (
			 SELECT id FROM nomikai_settlement_tasks
			 WHERE event_id = $1 AND NOT completed
			   AND ((payer_id = $2 AND payee_id = $3) OR (payer_id = $3 AND payee_id = $2))
			 ORDER BY id LIMIT 1
		 )
		 RETURNING payer_id, payee_id, amount`,
		eventID, userA, userB,
	)
	row, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[SettlementTaskRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return row, err
}

// ListSettlementPaymentsSum totals recorded settlement payments per pair.
func (db *DB) ListSettlementPaymentsSum(ctx context.Context, eventID int64) ([]SettlementTaskRow, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT payer_id, payee_id, SUM(amount)::bigint AS amount
		 FROM nomikai_task_payments
		 WHERE event_id = $1
		 GROUP BY payer_id, payee_id
		 ORDER BY payer_id, payee_id`,
		eventID,
	)
	return pgx.CollectRows(rows, pgx.RowToStructByName[SettlementTaskRow])
}

type openTask struct {
	ID     int64 `db:"id"`
	Amount int64 `db:"amount"`
}

// applyPayment spends amount on tasks oldest first. It returns the ids paid
// off in full, the task left partly paid with its new amount (nil if none),
// and what is still owed across all tasks.
func applyPayment(tasks []openTask, amount int64) (done []int64, partial *openTask, remaining int64) {
	left := amount
	for _, t := range tasks {
		switch {
		case left >= t.Amount:
			left -= t.Amount
			done = append(done, t.ID)
		case left > 0:
			partial = &openTask{ID: t.ID, Amount: t.Amount - left}
			remaining += partial.Amount
			left = 0
		default:
			remaining += t.Amount
		}
	}
	return done, partial, remaining
}

// RecordSettlementPayment logs a payment from payer to payee, applies it to
// their open tasks and returns what is still owed for the pair. Payments
// beyond the open total are logged but change nothing else.
func (db *DB) RecordSettlementPayment(ctx context.Context, eventID int64, payerID, payeeID string, amount int64, memo, recordedBy string) (int64, error) {
	if amount <= 0 {
		return 0, errors.New("amount must be positive")
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, _ := tx.Query(ctx,
		`SELECT id, amount
		 FROM nomikai_settlement_tasks
		 WHERE event_id = $1 AND NOT completed AND payer_id = $2 AND payee_id = $3
		 ORDER BY id FOR UPDATE`,
		eventID, payerID, payeeID,
	)
	open, err := pgx.CollectRows(rows, pgx.RowToStructByName[openTask])
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, ErrNoOpenTask
	}
	done, partial, remaining := applyPayment(open, amount)

	batch := &pgx.Batch{}
	if len(done) > 0 {
		batch.Queue(
			`UPDATE nomikai_settlement_tasks SET completed = TRUE, completed_at = CURRENT_TIMESTAMP WHERE id = ANY($1)`,
			done,
		)
	}
	if partial != nil {
		batch.Queue(`UPDATE nomikai_settlement_tasks SET amount = $2 WHERE id = $1`, partial.ID, partial.Amount)
	}
	batch.Queue(
		`INSERT INTO nomikai_task_payments (event_id, payer_id, payee_id, amount, memo, recorded_by)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		eventID, payerID, payeeID, amount, memo, recordedBy,
	)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}
