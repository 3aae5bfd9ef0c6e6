package bot

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/db"
)

const autoPostFooter = "\n\n※このメッセージは自動投稿です"

// ReminderStore schedules reminders. *db.DB implements it.
type ReminderStore interface {
	DueReminders(ctx context.Context, now time.Time) ([]db.ReminderDue, error)
	RescheduleReminder(ctx context.Context, eventID int64, nextDue time.Time, sentAt *time.Time) error
}

var _ ReminderStore = (*db.DB)(nil)

type reminderSource interface {
	ReminderMessageByEventID(ctx context.Context, eventID int64) (string, error)
}

type reminderSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// reminderWorker periodically posts unpaid settlement reminders to channels.
type reminderWorker struct {
	store    ReminderStore
	source   reminderSource
	session  reminderSession
	logger   *zap.Logger
	stopChan chan struct{}
	ticker   *time.Ticker
	interval time.Duration
	now      func() time.Time
}

func newReminderWorker(session reminderSession, store ReminderStore, source reminderSource, logger *zap.Logger) *reminderWorker {
	return &reminderWorker{
		store:    store,
		source:   source,
		session:  session,
		logger:   logger,
		stopChan: make(chan struct{}),
		interval: time.Minute,
		now:      time.Now,
	}
}

func (w *reminderWorker) start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *reminderWorker) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

func (w *reminderWorker) loop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

func (w *reminderWorker) tick(ctx context.Context) {
	now := w.now()
	targets, err := w.store.DueReminders(ctx, now)
	if err != nil {
		w.logger.Error("failed to load due reminders", zap.Error(err))
		return
	}

	for _, t := range targets {
		msg, err := w.source.ReminderMessageByEventID(ctx, t.EventID)
		if err != nil {
			w.logger.Error("failed to build reminder", zap.Int64("event_id", t.EventID), zap.Error(err))
			continue
		}
		if msg == "" {
			continue
		}
		w.logger.Debug("posting reminder", zap.Int64("event_id", t.EventID), zap.Int("pending", t.Pending))
		if err := w.sendWithRetry(ctx, t.ChannelID, msg+autoPostFooter); err != nil {
			w.logger.Warn("failed to send reminder", zap.String("channel_id", t.ChannelID), zap.Error(err))
			next := now.Add(retryBackoff(t.IntervalMinutes))
			if derr := w.store.RescheduleReminder(ctx, t.EventID, next, nil); derr != nil {
				w.logger.Error("failed to delay reminder", zap.Int64("event_id", t.EventID), zap.Error(derr))
			}
			continue
		}
		next := now.Add(time.Duration(t.IntervalMinutes) * time.Minute)
		if err := w.store.RescheduleReminder(ctx, t.EventID, next, &now); err != nil {
			w.logger.Error("failed to mark reminder sent", zap.Int64("event_id", t.EventID), zap.Error(err))
		}
	}
}

// retryBackoff is two minutes, capped at the reminder interval.
func retryBackoff(intervalMinutes int) time.Duration {
	backoff := 2 * time.Minute
	if intervalMinutes > 0 {
		backoff = min(backoff, time.Duration(intervalMinutes)*time.Minute)
	}
	return backoff
}

func (w *reminderWorker) sendWithRetry(ctx context.Context, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTimeout(err) {
			return err
		}
		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
