package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrNoActiveEvent    = errors.New("no active event for channel")
	ErrActiveEventTaken = errors.New("channel already has an active event")
)

const uniqueViolation = "23505"

type NomikaiEvent struct {
	ID                int64  `db:"id"`
	GuildID           int64  `db:"guild_id"`
	ChannelID         string `db:"channel_id"`
	OrganizerID       string `db:"organizer_id"`
	Status            string `db:"status"`
	RoundingUnit      int64  `db:"rounding_unit"`
	RemainderStrategy string `db:"remainder_strategy"`
}

type NomikaiMember struct {
	EventID int64   `db:"event_id"`
	UserID  string  `db:"user_id"`
	Weight  float64 `db:"weight"`
}

// NomikaiPayment is a recorded payment. Beneficiaries keep their command
// order; an empty list means every member.
type NomikaiPayment struct {
	ID            int64    `db:"id"`
	EventID       int64    `db:"event_id"`
	PayerID       string   `db:"payer_id"`
	Amount        int64    `db:"amount"`
	Memo          string   `db:"memo"`
	Beneficiaries []string `db:"beneficiaries"`
}

// CreateEvent opens an event for a channel. ErrActiveEventTaken is returned
// while another event is still active there.
func (db *DB) CreateEvent(ctx context.Context, guildID int64, channelID, organizerID string, roundingUnit int64, remainderStrategy string) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO nomikai_events (guild_id, channel_id, organizer_id, rounding_unit, remainder_strategy)
		 VALUES (@guild_id, @channel_id, @organizer_id, @rounding_unit, @remainder_strategy)
		 RETURNING id`,
		pgx.NamedArgs{
			"guild_id":           guildID,
			"channel_id":         channelID,
			"organizer_id":       organizerID,
			"rounding_unit":      roundingUnit,
			"remainder_strategy": remainderStrategy,
		},
	).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return 0, ErrActiveEventTaken
	}
	return id, err
}

func (db *DB) CloseEvent(ctx context.Context, eventID int64) error {
	return db.updateEvent(ctx,
		`UPDATE nomikai_events SET status = 'closed', closed_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND status = 'active'`,
		eventID)
}

// UpdateEventRounding stores the rounding settings used by later settle runs.
func (db *DB) UpdateEventRounding(ctx context.Context, eventID int64, roundingUnit int64, remainderStrategy string) error {
	return db.updateEvent(ctx,
		`UPDATE nomikai_events SET rounding_unit = $2, remainder_strategy = $3 WHERE id = $1`,
		eventID, roundingUnit, remainderStrategy)
}

func (db *DB) updateEvent(ctx context.Context, sql string, args ...any) error {
	ct, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (db *DB) ActiveEventByChannel(ctx context.Context, channelID string) (*NomikaiEvent, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT id, guild_id, channel_id, organizer_id, status, rounding_unit, remainder_strategy
		 FROM nomikai_events
		 WHERE channel_id = $1 AND status = 'active'`,
		channelID,
	)
	ev, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[NomikaiEvent])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveEvent
	}
	return ev, err
}

// UpsertMember adds a member or changes their weight. Join order is kept.
func (db *DB) UpsertMember(ctx context.Context, eventID int64, userID string, weight float64) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO nomikai_event_members (event_id, user_id, weight)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id) DO UPDATE SET weight = EXCLUDED.weight`,
		eventID, userID, weight,
	)
	return err
}

// Members returns the event's members in join order.
func (db *DB) Members(ctx context.Context, eventID int64) ([]NomikaiMember, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT event_id, user_id, weight FROM nomikai_event_members WHERE event_id = $1 ORDER BY seq`,
		eventID,
	)
	return pgx.CollectRows(rows, pgx.RowToStructByName[NomikaiMember])
}

// AddPayment stores a payment together with its beneficiaries in one
// statement. Empty ids and repeats are dropped.
func (db *DB) AddPayment(ctx context.Context, eventID int64, payerID string, amount int64, memo string, beneficiaries []string) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`WITH pay AS (
			INSERT INTO nomikai_payments (event_id, payer_id, amount, memo)
			VALUES ($1, $2, $3, NULLIF($4, ''))
			RETURNING id
		 ), ben AS (
			INSERT INTO nomikai_payment_beneficiaries (payment_id, user_id, position)
			SELECT pay.id, b.user_id, b.ord - 1
			FROM pay, unnest($5::text[]) WITH ORDINALITY AS b(user_id, ord)
			WHERE b.user_id <> ''
			ON CONFLICT DO NOTHING
		 )
		 SELECT id FROM pay`,
		eventID, payerID, amount, memo, beneficiaries,
	).Scan(&id)
	return id, err
}

// Payments returns the event's payments in insertion order with their
// beneficiaries expanded.
func (db *DB) Payments(ctx context.Context, eventID int64) ([]NomikaiPayment, error) {
	rows, _ := db.pool.Query(ctx,
		`SELECT p.id, p.event_id, p.payer_id, p.amount, COALESCE(p.memo, '') AS memo,
		        COALESCE(array_agg(b.user_id ORDER BY b.position) FILTER (WHERE b.user_id IS NOT NULL), '{}') AS beneficiaries
		 FROM nomikai_payments p
		 LEFT JOIN nomikai_payment_beneficiaries b ON b.payment_id = p.id
		 WHERE p.event_id = $1
		 GROUP BY p.id
		 ORDER BY p.id`,
		eventID,
	)
	return pgx.CollectRows(rows, pgx.RowToStructByName[NomikaiPayment])
}
