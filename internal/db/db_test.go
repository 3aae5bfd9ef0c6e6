package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDB connects to WARIKAN_TEST_DATABASE_URL and skips when it is unset.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("WARIKAN_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("WARIKAN_TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	database, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.RunMigrations(ctx))
	return database
}

func TestEventLifecycle(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	channel := "test-" + uuid.NewString()

	id, err := database.CreateEvent(ctx, 1, channel, "organizer", 100, "largest")
	require.NoError(t, err)

	_, err = database.CreateEvent(ctx, 1, channel, "organizer", 100, "largest")
	assert.ErrorIs(t, err, ErrActiveEventTaken)

	require.NoError(t, database.UpdateEventRounding(ctx, id, 10, "payer"))
	ev, err := database.ActiveEventByChannel(ctx, channel)
	require.NoError(t, err)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, int64(10), ev.RoundingUnit)
	assert.Equal(t, "payer", ev.RemainderStrategy)

	require.NoError(t, database.CloseEvent(ctx, id))
	_, err = database.ActiveEventByChannel(ctx, channel)
	assert.ErrorIs(t, err, ErrNoActiveEvent)

	// The channel is free again once the event is closed.
	_, err = database.CreateEvent(ctx, 1, channel, "organizer", 100, "largest")
	require.NoError(t, err)
}

func TestMembersAndPayments(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	id, err := database.CreateEvent(ctx, 1, "test-"+uuid.NewString(), "o", 100, "largest")
	require.NoError(t, err)

	for _, u := range []string{"c", "a", "b"} {
		require.NoError(t, database.UpsertMember(ctx, id, u, 1))
	}
	require.NoError(t, database.UpsertMember(ctx, id, "a", 2.5))

	members, err := database.Members(ctx, id)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "c", members[0].UserID)
	assert.Equal(t, "a", members[1].UserID)
	assert.Equal(t, 2.5, members[1].Weight)

	payID, err := database.AddPayment(ctx, id, "a", 3000, "dinner", []string{"c", "", "b", "c"})
	require.NoError(t, err)
	_, err = database.AddPayment(ctx, id, "a", -500, "", nil)
	require.NoError(t, err)

	payments, err := database.Payments(ctx, id)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, payID, payments[0].ID)
	assert.Equal(t, int64(3000), payments[0].Amount)
	assert.Equal(t, "dinner", payments[0].Memo)
	assert.Equal(t, []string{"c", "b"}, payments[0].Beneficiaries)
	assert.Equal(t, int64(-500), payments[1].Amount)
	assert.Empty(t, payments[1].Memo)
	assert.Empty(t, payments[1].Beneficiaries)
}

func TestSettlementTasks(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	id, err := database.CreateEvent(ctx, 1, "test-"+uuid.NewString(), "o", 100, "largest")
	require.NoError(t, err)

	run, err := database.LatestSettlementRun(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, run)

	settledAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, database.SaveSettlement(ctx, id, SettlementRun{
		RoundingUnit:      100,
		RemainderStrategy: "largest",
		UnmatchedCredit:   40,
		Skipped:           1,
		SettledAt:         settledAt,
	}, []SettlementTaskRow{
		{PayerID: "b", PayeeID: "a", Amount: 1000},
		{PayerID: "c", PayeeID: "a", Amount: 1000},
		{PayerID: "x", PayeeID: "a", Amount: 0},
	}))
	pending, err := database.ListPendingSettlementTasks(ctx, id)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	run, err = database.LatestSettlementRun(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, int64(40), run.UnmatchedCredit)
	assert.Equal(t, 1, run.Skipped)
	assert.True(t, settledAt.Equal(run.SettledAt))

	_, err = database.RecordSettlementPayment(ctx, id, "a", "b", 400, "", "a")
	assert.ErrorIs(t, err, ErrNoOpenTask)

	remaining, err := database.RecordSettlementPayment(ctx, id, "b", "a", 400, "partial", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(600), remaining)

	done, err := database.CompleteSettlementTask(ctx, id, "a", "c")
	require.NoError(t, err)
	assert.Equal(t, &SettlementTaskRow{PayerID: "c", PayeeID: "a", Amount: 1000}, done)
	done, err = database.CompleteSettlementTask(ctx, id, "a", "c")
	require.NoError(t, err)
	assert.Nil(t, done)

	pending, err = database.ListPendingSettlementTasks(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []SettlementTaskRow{{PayerID: "b", PayeeID: "a", Amount: 600}}, pending)

	sums, err := database.ListSettlementPaymentsSum(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []SettlementTaskRow{{PayerID: "b", PayeeID: "a", Amount: 400}}, sums)
}

func filterEvent(targets []ReminderDue, eventID int64) []ReminderDue {
	var out []ReminderDue
	for _, r := range targets {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out
}

func TestReminders(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	channel := "test-" + uuid.NewString()
	id, err := database.CreateEvent(ctx, 1, channel, "o", 100, "largest")
	require.NoError(t, err)

	cfg, err := database.ReminderConfig(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	now := time.Now().UTC().Truncate(time.Second)
	due := now.Add(-time.Minute)
	require.NoError(t, database.SetReminder(ctx, id, ReminderConfig{Enabled: true, IntervalMinutes: 30, NextDueAt: &due}))

	// No pending tasks yet, so nothing is due.
	targets, err := database.DueReminders(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, filterEvent(targets, id))

	require.NoError(t, database.SaveSettlement(ctx, id, SettlementRun{RoundingUnit: 100, RemainderStrategy: "largest"}, []SettlementTaskRow{
		{PayerID: "b", PayeeID: "a", Amount: 100},
		{PayerID: "c", PayeeID: "a", Amount: 100},
	}))
	targets, err = database.DueReminders(ctx, now)
	require.NoError(t, err)
	due2 := ReminderDue{EventID: id, ChannelID: channel, IntervalMinutes: 30, Pending: 2}
	assert.Contains(t, targets, due2)

	require.NoError(t, database.RescheduleReminder(ctx, id, now.Add(30*time.Minute), &now))
	targets, err = database.DueReminders(ctx, now)
	require.NoError(t, err)
	assert.NotContains(t, targets, due2)

	// Keeping the schedule while toggling settings.
	require.NoError(t, database.SetReminder(ctx, id, ReminderConfig{Enabled: true, IntervalMinutes: 30}))
	cfg, err = database.ReminderConfig(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, cfg.NextDueAt)
	assert.True(t, now.Add(30*time.Minute).Equal(*cfg.NextDueAt))

	require.NoError(t, database.RescheduleReminder(ctx, id, now.Add(-time.Second), nil))
	cfg, err = database.ReminderConfig(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.IntervalMinutes)
}

func TestApplyPayment(t *testing.T) {
	tasks := []openTask{{ID: 1, Amount: 300}, {ID: 2, Amount: 500}, {ID: 3, Amount: 200}}

	tests := []struct {
		name          string
		amount        int64
		wantDone      []int64
		wantPartial   *openTask
		wantRemaining int64
	}{
		{"partial first", 100, nil, &openTask{ID: 1, Amount: 200}, 900},
		{"exact first", 300, []int64{1}, nil, 700},
		{"spills into second", 450, []int64{1}, &openTask{ID: 2, Amount: 350}, 550},
		{"everything", 1000, []int64{1, 2, 3}, nil, 0},
		{"overpaid", 5000, []int64{1, 2, 3}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done, partial, remaining := applyPayment(tasks, tt.amount)
			assert.Equal(t, tt.wantDone, done)
			assert.Equal(t, tt.wantPartial, partial)
			assert.Equal(t, tt.wantRemaining, remaining)
		})
	}
}

func TestTaskColumns(t *testing.T) {
	payers, payees, amounts := taskColumns([]SettlementTaskRow{
		{PayerID: "b", PayeeID: "a", Amount: 100},
		{PayerID: "", PayeeID: "a", Amount: 100},
		{PayerID: "c", PayeeID: "a", Amount: 0},
		{PayerID: "c", PayeeID: "a", Amount: 50},
	})
	assert.Equal(t, []string{"b", "c"}, payers)
	assert.Equal(t, []string{"a", "a"}, payees)
	assert.Equal(t, []int64{100, 50}, amounts)
}
