package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/commands"
	"github.com/susu3304/warikan/internal/nomikai"
)

type Bot struct {
	session  *discordgo.Session
	warikan  *commands.Warikan
	reminder *reminderWorker
	logger   *zap.Logger
}

// New creates the Discord bot. Reminders are only posted when store is non-nil.
func New(token string, svc *nomikai.Service, store ReminderStore, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	b := &Bot{
		session: session,
		warikan: commands.NewWarikan(svc, logger.Named("commands")),
		logger:  logger,
	}
	if store != nil {
		b.reminder = newReminderWorker(session, store, svc, logger.Named("reminder"))
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds

	return b, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.reminder.start()
	b.logger.Info("discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.reminder.stop()
	return b.session.Close()
}
