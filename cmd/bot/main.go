package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/sellerspro/internal/bot"
	"github.com/example/sellerspro/internal/config"
	"github.com/example/sellerspro/internal/database"
	"github.com/example/sellerspro/internal/logger"
	"github.com/example/sellerspro/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN must be set")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("database setup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bot.New(
		services.NewTelegramService(cfg.TelegramToken, cfg.TelegramAPI, cfg.AdminChatID),
		services.NewIdentityService(db, nil),
		services.NewOTPService(db, cfg.OTPTTL, cfg.OTPLength, nil),
		log,
	)

	if err := b.Run(ctx); err != nil {
		log.WithError(err).Fatal("bot stopped")
	}
	log.Info("bot stopped")
}
