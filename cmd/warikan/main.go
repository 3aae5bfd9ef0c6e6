package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/api"
	"github.com/susu3304/warikan/internal/bot"
	"github.com/susu3304/warikan/internal/config"
	"github.com/susu3304/warikan/internal/db"
	"github.com/susu3304/warikan/internal/logging"
	"github.com/susu3304/warikan/internal/nomikai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo nomikai.Repository
	var reminders bot.ReminderStore
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer database.Close()

		if err := database.RunMigrations(ctx); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		repo, reminders = database, database
	} else {
		logger.Warn("DATABASE_URL is not set, sessions are kept in memory")
	}

	svc := nomikai.NewService(repo, nomikai.Defaults{
		RoundingUnit: cfg.RoundingUnit,
		Strategy:     cfg.RemainderStrategy,
	}, logger.Named("nomikai"))

	if cfg.DiscordToken != "" {
		discordBot, err := bot.New(cfg.DiscordToken, svc, reminders, logger.Named("bot"))
		if err != nil {
			logger.Fatal("failed to create discord bot", zap.Error(err))
		}
		if err := discordBot.Start(); err != nil {
			logger.Fatal("failed to start discord bot", zap.Error(err))
		}
		defer func() {
			if err := discordBot.Stop(); err != nil {
				logger.Error("failed to stop discord bot", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("DISCORD_TOKEN is not set, running the HTTP API only")
	}

	apiServer := api.New(cfg, svc, logger.Named("api"))
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
}
