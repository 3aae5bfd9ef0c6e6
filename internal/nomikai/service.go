package nomikai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/db"
	"github.com/susu3304/warikan/internal/settlement"
)

var (
	ErrNotStarted            = errors.New("セッションが開始されていません")
	ErrAlreadyStarted        = errors.New("既に開始されています")
	ErrNoSession             = errors.New("セッションが存在しません")
	ErrNegativeTotal         = errors.New("訂正額により合計が負になります")
	ErrZeroAmount            = errors.New("金額は0以外で指定してください")
	ErrNonPositivePayment    = errors.New("金額は正の値で指定してください")
	ErrNotEnoughParticipants = errors.New("参加者が2人以上必要です")
	ErrInvalidRoundingUnit   = errors.New("端数単位は正の整数で指定してください")
	ErrInvalidInterval       = errors.New("間隔は1分以上で指定してください")
	ErrPersistenceDisabled   = errors.New("この機能にはデータベースが必要です")
	ErrTaskNotFound          = errors.New("対象のタスクが見つかりません")
)

type Service struct {
	mu       sync.Mutex
	store    map[string]*Session
	repo     Repository
	defaults Defaults
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a session service. A nil repo keeps everything in memory.
func NewService(repo Repository, defaults Defaults, logger *zap.Logger) *Service {
	if defaults.RoundingUnit <= 0 {
		defaults.RoundingUnit = settlement.DefaultRoundingUnit
	}
	if defaults.Strategy == "" {
		defaults.Strategy = settlement.RemainderLargest
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    make(map[string]*Session),
		repo:     repo,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) StartSession(ctx context.Context, guildID int64, channelID, organizerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.store[channelID]; ok && sess.Active {
		return ErrAlreadyStarted
	}

	sess := &Session{
		ChannelID:    channelID,
		GuildID:      guildID,
		Active:       true,
		Participants: make(map[string]*Participant),
		RoundingUnit: s.defaults.RoundingUnit,
		Strategy:     s.defaults.Strategy,
	}
	if s.repo != nil {
		id, err := s.repo.CreateEvent(ctx, guildID, channelID, organizerID, sess.RoundingUnit, string(sess.Strategy))
		if errors.Is(err, db.ErrActiveEventTaken) {
			if _, rerr := s.restoreLocked(ctx, channelID); rerr != nil {
				return fmt.Errorf("restore session: %w", rerr)
			}
			return ErrAlreadyStarted
		}
		if err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		sess.EventID = id
	}
	s.store[channelID] = sess
	s.logger.Info("session started",
		zap.String("channel_id", channelID),
		zap.Int64("event_id", sess.EventID),
		zap.String("organizer_id", organizerID),
	)
	return nil
}

func (s *Service) StopSession(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if errors.Is(err, ErrNotStarted) {
		return ErrNoSession
	}
	if err != nil {
		return err
	}
	if s.repo != nil && sess.EventID != 0 {
		if err := s.repo.CloseEvent(ctx, sess.EventID); err != nil {
			return fmt.Errorf("close event: %w", err)
		}
	}
	delete(s.store, channelID)
	s.logger.Info("session stopped", zap.String("channel_id", channelID))
	return nil
}

func (s *Service) Join(ctx context.Context, channelID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return err
	}
	_, err = s.ensureParticipantLocked(ctx, sess, userID)
	return err
}

// SetWeight sets a member's share ratio, joining them if needed. Weights at or
// below zero are stored as zero.
func (s *Service) SetWeight(ctx context.Context, channelID, userID string, w float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return false, err
	}
	if w <= 0 {
		w = 0
	}
	p, exists := sess.Participants[userID]
	if s.repo != nil && sess.EventID != 0 {
		if err := s.repo.UpsertMember(ctx, sess.EventID, userID, w); err != nil {
			return false, fmt.Errorf("upsert member: %w", err)
		}
	}
	if !exists {
		p = &Participant{UserID: userID}
		sess.Participants[userID] = p
		sess.Order = append(sess.Order, userID)
	}
	p.Weight = w
	return !exists, nil
}

// AddPayment records a payment shared by every participant. Negative amounts
// correct earlier payments as long as the payer's total stays non-negative.
func (s *Service) AddPayment(ctx context.Context, channelID, userID string, amount int64, memo string) (bool, error) {
	joined, _, err := s.AddPaymentFor(ctx, channelID, userID, amount, memo, nil)
	return joined, err
}

// AddPaymentFor records a payment by payer for specific beneficiaries, who are
// joined automatically. An empty list means every participant.
// Returns: payerJoined, beneficiariesJoinedIDs, error
func (s *Service) AddPaymentFor(ctx context.Context, channelID, payerID string, amount int64, memo string, beneficiaries []string) (bool, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return false, nil, err
	}
	if amount == 0 {
		return false, nil, ErrZeroAmount
	}
	var paid int64
	if p, ok := sess.Participants[payerID]; ok {
		paid = p.PaidSum
	}
	if paid+amount < 0 {
		return false, nil, ErrNegativeTotal
	}

	joined, err := s.ensureParticipantLocked(ctx, sess, payerID)
	if err != nil {
		return false, nil, err
	}

	// Normalize: remove duplicates and empties
	uniq := make(map[string]struct{}, len(beneficiaries))
	var ben, benJoined []string
	for _, id := range beneficiaries {
		if id == "" {
			continue
		}
		if _, seen := uniq[id]; seen {
			continue
		}
		uniq[id] = struct{}{}
		j, err := s.ensureParticipantLocked(ctx, sess, id)
		if err != nil {
			return joined, benJoined, err
		}
		if j {
			benJoined = append(benJoined, id)
		}
		ben = append(ben, id)
	}

	if s.repo != nil && sess.EventID != 0 {
		if _, err := s.repo.AddPayment(ctx, sess.EventID, payerID, amount, memo, ben); err != nil {
			return joined, benJoined, fmt.Errorf("add payment: %w", err)
		}
	}
	sess.Participants[payerID].PaidSum += amount
	sess.Payments = append(sess.Payments, Payment{
		ID:            uuid.NewString(),
		PayerID:       payerID,
		Amount:        amount,
		Memo:          memo,
		Beneficiaries: ben,
	})
	return joined, benJoined, nil
}

// SetRounding changes the rounding unit and, unless strategy is empty, the
// remainder strategy of the channel's session.
func (s *Service) SetRounding(ctx context.Context, channelID string, unit int64, strategy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return err
	}
	if unit <= 0 {
		return ErrInvalidRoundingUnit
	}
	st := sess.Strategy
	if strings.TrimSpace(strategy) != "" {
		if st, err = settlement.ParseRemainderStrategy(strategy); err != nil {
			return err
		}
	}
	if s.repo != nil && sess.EventID != 0 {
		if err := s.repo.UpdateEventRounding(ctx, sess.EventID, unit, string(st)); err != nil {
			return fmt.Errorf("update rounding: %w", err)
		}
	}
	sess.RoundingUnit = unit
	sess.Strategy = st
	return nil
}

func (s *Service) Status(ctx context.Context, channelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return "", err
	}
	if len(sess.Order) == 0 {
		return "参加者がいません", nil
	}
	expenses, _, err := sess.expenses()
	if err != nil {
		return "", err
	}
	balances := settlement.CalculateBalances(sess.participants(), expenses)

	var total int64
	for _, uid := range sess.Order {
		total += sess.Participants[uid].PaidSum
	}
	var b strings.Builder
	fmt.Fprintf(&b, "総支出: %d 円 (端数単位 %d 円, %s)\n", total, sess.RoundingUnit, sess.Strategy)
	for _, bal := range balances {
		p := sess.Participants[bal.Participant.ID]
		fmt.Fprintf(&b, "<@%s> weight=%.2f paid=%d share=%d diff=%+d\n", p.UserID, p.Weight, bal.Paid, bal.ShouldPay, bal.Diff)
	}
	if n := pendingCount(sess.Tasks); n > 0 {
		fmt.Fprintf(&b, "未完了タスク: %d 件\n", n)
	}
	if sess.LastSettlement != nil {
		formatRecord(&b, sess.LastSettlement)
	}
	if s.repo != nil && sess.EventID != 0 {
		paid, err := s.repo.ListSettlementPaymentsSum(ctx, sess.EventID)
		if err != nil {
			return "", fmt.Errorf("load settlement payments: %w", err)
		}
		for _, r := range paid {
			fmt.Fprintf(&b, "送金済み: <@%s> → <@%s> %d 円\n", r.PayerID, r.PayeeID, r.Amount)
		}
		rem, err := s.repo.ReminderConfig(ctx, sess.EventID)
		if err != nil {
			return "", fmt.Errorf("load reminder: %w", err)
		}
		if rem != nil && rem.Enabled {
			fmt.Fprintf(&b, "リマインダー: %d 分ごと\n", rem.IntervalMinutes)
		}
	}
	return b.String(), nil
}

// Snapshot returns members, current balances and open tasks for a channel.
func (s *Service) Snapshot(ctx context.Context, channelID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return nil, err
	}
	expenses, _, err := sess.expenses()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		ChannelID:         sess.ChannelID,
		GuildID:           sess.GuildID,
		RoundingUnit:      sess.RoundingUnit,
		RemainderStrategy: sess.Strategy,
		Members:           make([]Participant, 0, len(sess.Order)),
		Balances:          settlement.CalculateBalances(sess.participants(), expenses),
		PendingTasks:      []SettlementTask{},
	}
	if sess.LastSettlement != nil {
		rec := *sess.LastSettlement
		snap.LastSettlement = &rec
	}
	for _, uid := range sess.Order {
		snap.Members = append(snap.Members, *sess.Participants[uid])
	}
	for _, t := range sess.Tasks {
		if !t.Completed {
			snap.PendingTasks = append(snap.PendingTasks, t)
		}
	}
	return snap, nil
}

// Members returns the participant user IDs for the channel session in join order.
func (s *Service) Members(ctx context.Context, channelID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), sess.Order...), nil
}

// Settle computes balances and the transfer plan for the channel and replaces
// the session's tasks with it.
func (s *Service) Settle(ctx context.Context, channelID string) (*SettleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if len(sess.Order) < 2 {
		return nil, ErrNotEnoughParticipants
	}

	expenses, skipped, err := sess.expenses()
	if err != nil {
		return nil, fmt.Errorf("build expenses: %w", err)
	}
	res := settlement.Settle(sess.participants(), expenses, settlement.Options{RoundingUnit: sess.RoundingUnit})

	tasks := make([]SettlementTask, 0, len(res.Plan.Entries))
	for _, e := range res.Plan.Entries {
		tasks = append(tasks, SettlementTask{PayerID: e.From, PayeeID: e.To, Amount: e.Amount})
	}
	rec := &SettlementRecord{
		RoundingUnit:      sess.RoundingUnit,
		RemainderStrategy: sess.Strategy,
		UnmatchedCredit:   res.Plan.UnmatchedCredit,
		UnmatchedDebit:    res.Plan.UnmatchedDebit,
		Skipped:           skipped,
		SettledAt:         s.now(),
	}
	if s.repo != nil && sess.EventID != 0 {
		if err := s.repo.SaveSettlement(ctx, sess.EventID, runFromRecord(rec), rowsFromTasks(tasks)); err != nil {
			return nil, fmt.Errorf("store settlement: %w", err)
		}
	}
	sess.Tasks = tasks
	sess.LastSettlement = rec

	if skipped > 0 {
		s.logger.Warn("payments without weighted targets were skipped",
			zap.String("channel_id", channelID),
			zap.Int("skipped", skipped),
		)
	}
	if !res.Plan.Balanced() {
		s.logger.Warn("settlement plan left unmatched amounts",
			zap.String("channel_id", channelID),
			zap.Int64("unmatched_credit", res.Plan.UnmatchedCredit),
			zap.Int64("unmatched_debit", res.Plan.UnmatchedDebit),
		)
	}
	s.logger.Info("session settled", zap.String("channel_id", channelID), zap.Int("tasks", len(tasks)))

	var summary string
	if len(tasks) == 0 {
		summary = "精算は不要です"
	} else {
		summary = formatTasks("支払タスク:", tasks)
	}
	if skipped > 0 {
		summary += fmt.Sprintf("\n比率が0のため割り当てられなかった支払い: %d 件", skipped)
	}
	return &SettleResult{Tasks: tasks, Result: res, Skipped: skipped, Summary: summary}, nil
}

// CompleteTask marks the first open task between actor and other as done,
// regardless of direction.
func (s *Service) CompleteTask(ctx context.Context, channelID, actorID, otherID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return "", err
	}
	for idx := range sess.Tasks {
		t := &sess.Tasks[idx]
		if t.Completed {
			continue
		}
		if (t.PayerID == actorID && t.PayeeID == otherID) || (t.PayerID == otherID && t.PayeeID == actorID) {
			if s.repo != nil && sess.EventID != 0 {
				row, err := s.repo.CompleteSettlementTask(ctx, sess.EventID, actorID, otherID)
				if err != nil {
					return "", fmt.Errorf("complete task: %w", err)
				}
				if row == nil {
					return "", ErrTaskNotFound
				}
			}
			t.Completed = true
			return fmt.Sprintf("完了しました: <@%s> ↔ <@%s> %d 円", t.PayerID, t.PayeeID, t.Amount), nil
		}
	}
	return "", ErrTaskNotFound
}

// RecordPayment applies a (possibly partial) payment from payer to payee to
// the open tasks for that pair, oldest first, and returns what is still owed.
func (s *Service) RecordPayment(ctx context.Context, channelID, payerID, payeeID string, amount int64, memo, recordedBy string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrNonPositivePayment
	}

	var stored int64
	if s.repo != nil && sess.EventID != 0 {
		stored, err = s.repo.RecordSettlementPayment(ctx, sess.EventID, payerID, payeeID, amount, memo, recordedBy)
		if errors.Is(err, db.ErrNoOpenTask) {
			return 0, ErrTaskNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("record payment: %w", err)
		}
	}

	left := amount
	var remaining int64
	matched := false
	for idx := range sess.Tasks {
		t := &sess.Tasks[idx]
		if t.Completed || t.PayerID != payerID || t.PayeeID != payeeID {
			continue
		}
		matched = true
		switch {
		case left >= t.Amount:
			left -= t.Amount
			t.Completed = true
		case left > 0:
			t.Amount -= left
			left = 0
			remaining += t.Amount
		default:
			remaining += t.Amount
		}
	}
	if s.repo != nil && sess.EventID != 0 {
		return stored, nil
	}
	if !matched {
		return 0, ErrTaskNotFound
	}
	return remaining, nil
}

// EnableReminder turns periodic unpaid-task reminders on or off. The first
// reminder is due one interval from now.
func (s *Service) EnableReminder(ctx context.Context, channelID string, intervalMinutes int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.activeLocked(ctx, channelID)
	if err != nil {
		return err
	}
	if s.repo == nil || sess.EventID == 0 {
		return ErrPersistenceDisabled
	}
	if enabled && intervalMinutes <= 0 {
		return ErrInvalidInterval
	}
	next := s.now().Add(time.Duration(intervalMinutes) * time.Minute)
	cfg := db.ReminderConfig{Enabled: enabled, IntervalMinutes: intervalMinutes, NextDueAt: &next}
	if err := s.repo.SetReminder(ctx, sess.EventID, cfg); err != nil {
		return fmt.Errorf("upsert reminder: %w", err)
	}
	return nil
}

// ReminderMessageByEventID returns the pending-task text for an event, or ""
// when nothing is pending.
func (s *Service) ReminderMessageByEventID(ctx context.Context, eventID int64) (string, error) {
	if s.repo == nil {
		return "", ErrPersistenceDisabled
	}
	rows, err := s.repo.ListPendingSettlementTasks(ctx, eventID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return formatTasks("未精算の支払いがあります:", tasksFromRows(rows)), nil
}

// Restore reloads the channel's active event from the repository.
func (s *Service) Restore(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.restoreLocked(ctx, channelID)
	return err
}

func (s *Service) activeLocked(ctx context.Context, channelID string) (*Session, error) {
	if sess, ok := s.store[channelID]; ok && sess.Active {
		return sess, nil
	}
	if s.repo == nil {
		return nil, ErrNotStarted
	}
	sess, err := s.restoreLocked(ctx, channelID)
	if errors.Is(err, db.ErrNoActiveEvent) {
		return nil, ErrNotStarted
	}
	return sess, err
}

func (s *Service) restoreLocked(ctx context.Context, channelID string) (*Session, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	ev, err := s.repo.ActiveEventByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	strategy, err := settlement.ParseRemainderStrategy(ev.RemainderStrategy)
	if err != nil {
		strategy = s.defaults.Strategy
	}
	sess := &Session{
		ChannelID:    ev.ChannelID,
		GuildID:      ev.GuildID,
		EventID:      ev.ID,
		Active:       true,
		Participants: make(map[string]*Participant),
		RoundingUnit: ev.RoundingUnit,
		Strategy:     strategy,
	}
	if sess.RoundingUnit <= 0 {
		sess.RoundingUnit = s.defaults.RoundingUnit
	}

	members, err := s.repo.Members(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	for _, m := range members {
		sess.Participants[m.UserID] = &Participant{UserID: m.UserID, Weight: m.Weight}
		sess.Order = append(sess.Order, m.UserID)
	}

	payments, err := s.repo.Payments(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	for _, p := range payments {
		if part, ok := sess.Participants[p.PayerID]; ok {
			part.PaidSum += p.Amount
		}
		sess.Payments = append(sess.Payments, Payment{
			ID:            fmt.Sprintf("%d", p.ID),
			PayerID:       p.PayerID,
			Amount:        p.Amount,
			Memo:          p.Memo,
			Beneficiaries: p.Beneficiaries,
		})
	}

	pending, err := s.repo.ListPendingSettlementTasks(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	sess.Tasks = tasksFromRows(pending)

	run, err := s.repo.LatestSettlementRun(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("load settlement run: %w", err)
	}
	sess.LastSettlement = recordFromRun(run, strategy)

	s.store[channelID] = sess
	s.logger.Info("session restored",
		zap.String("channel_id", channelID),
		zap.Int64("event_id", ev.ID),
		zap.Int("members", len(sess.Order)),
		zap.Int("payments", len(sess.Payments)),
	)
	return sess, nil
}

func (s *Service) ensureParticipantLocked(ctx context.Context, sess *Session, userID string) (bool, error) {
	if _, exists := sess.Participants[userID]; exists {
		return false, nil
	}
	if s.repo != nil && sess.EventID != 0 {
		if err := s.repo.UpsertMember(ctx, sess.EventID, userID, 1.0); err != nil {
			return false, fmt.Errorf("upsert member: %w", err)
		}
	}
	sess.Participants[userID] = &Participant{UserID: userID, Weight: 1.0}
	sess.Order = append(sess.Order, userID)
	return true, nil
}
