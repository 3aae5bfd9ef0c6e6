package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type ReminderConfig struct {
	Enabled         bool       `db:"enabled"`
	IntervalMinutes int        `db:"interval_minutes"`
	NextDueAt       *time.Time `db:"next_due_at"`
}

// ReminderDue is an event whose reminder should be posted now.
type ReminderDue struct {
	EventID         int64  `db:"event_id"`
	ChannelID       string `db:"channel_id"`
	IntervalMinutes int    `db:"interval_minutes"`
	Pending         int    `db:"pending"`
}

// SetReminder stores the reminder settings of an event. A nil NextDueAt keeps
// the current schedule.
func (db *DB) SetReminder(ctx context.Context, eventID int64, cfg ReminderConfig) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO nomikai_reminders (event_id, enabled, interval_minutes, next_due_at)
		 VALUES (@event_id, @enabled, @interval_minutes, @next_due_at)
		 ON CONFLICT (event_id) DO UPDATE
		 SET enabled = EXCLUDED.enabled,
			 interval_minutes = EXCLUDED.interval_minutes,
			 next_due_at = COALESCE(EXCLUDED.next_due_at, nomikai_reminders.next_due_at)`,
		pgx.NamedArgs{
			"event_id":         eventID,
			"enabled":          cfg.Enabled,
			"interval_minutes": cfg.IntervalMinutes,
			"next_due_at":      cfg.NextDueAt,
		},
	)
	return err
}

// ReminderConfig returns nil without error when no reminder was configured.
func (db *DB) ReminderConfig(ctx context.Context, eventID int64) (*ReminderConfig, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT enabled, interval_minutes, next_due_at FROM nomikai_reminders WHERE event_id = $1`,
		eventID,
	)
	cfg, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[ReminderConfig])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

// DueReminders lists enabled reminders of active events that are due at now
// and still have open tasks, oldest schedule first.
func (db *DB) DueReminders(ctx context.Context, now time.Time) ([]ReminderDue, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT r.event_id, e.channel_id, r.interval_minutes, COUNT(t.id)::int AS pending
		 FROM nomikai_reminders r
		 JOIN nomikai_events e ON e.id = r.event_id AND e.status = 'active'
		 JOIN nomikai_settlement_tasks t ON t.event_id = r.event_id AND NOT t.completed
		 WHERE r.enabled AND (r.next_due_at IS NULL OR r.next_due_at <= $1)
		 GROUP BY r.event_id, e.channel_id, r.interval_minutes, r.next_due_at
		 ORDER BY r.next_due_at NULLS FIRST, r.event_id`,
		now,
	)
	return pgx.CollectRows(rows, pgx.RowToStructByName[ReminderDue])
}

// RescheduleReminder moves the next due time. A non-nil sentAt also records
// a successful post.
func (db *DB) RescheduleReminder(ctx context.Context, eventID int64, nextDue time.Time, sentAt *time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE nomikai_reminders
		 SET next_due_at = $2, last_sent_at = COALESCE($3, last_sent_at)
		 WHERE event_id = $1`,
		eventID, nextDue, sentAt,
	)
	return err
}
