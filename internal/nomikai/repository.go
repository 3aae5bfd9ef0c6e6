package nomikai

import (
	"context"

	"github.com/susu3304/warikan/internal/db"
)

// Repository persists sessions. *db.DB implements it.
type Repository interface {
	CreateEvent(ctx context.Context, guildID int64, channelID, organizerID string, roundingUnit int64, remainderStrategy string) (int64, error)
	CloseEvent(ctx context.Context, eventID int64) error
	UpdateEventRounding(ctx context.Context, eventID int64, roundingUnit int64, remainderStrategy string) error
	ActiveEventByChannel(ctx context.Context, channelID string) (*db.NomikaiEvent, error)

	UpsertMember(ctx context.Context, eventID int64, userID string, weight float64) error
	Members(ctx context.Context, eventID int64) ([]db.NomikaiMember, error)

	AddPayment(ctx context.Context, eventID int64, payerID string, amount int64, memo string, beneficiaries []string) (int64, error)
	Payments(ctx context.Context, eventID int64) ([]db.NomikaiPayment, error)

	SaveSettlement(ctx context.Context, eventID int64, run db.SettlementRun, tasks []db.SettlementTaskRow) error
	LatestSettlementRun(ctx context.Context, eventID int64) (*db.SettlementRun, error)
	ListPendingSettlementTasks(ctx context.Context, eventID int64) ([]db.SettlementTaskRow, error)
	CompleteSettlementTask(ctx context.Context, eventID int64, userA, userB string) (*db.SettlementTaskRow, error)
	RecordSettlementPayment(ctx context.Context, eventID int64, payerID, payeeID string, amount int64, memo, recordedBy string) (int64, error)
	ListSettlementPaymentsSum(ctx context.Context, eventID int64) ([]db.SettlementTaskRow, error)

	SetReminder(ctx context.Context, eventID int64, cfg db.ReminderConfig) error
	ReminderConfig(ctx context.Context, eventID int64) (*db.ReminderConfig, error)
}

var _ Repository = (*db.DB)(nil)
