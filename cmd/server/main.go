package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/example/sellerspro/internal/config"
	"github.com/example/sellerspro/internal/database"
	"github.com/example/sellerspro/internal/jobs"
	"github.com/example/sellerspro/internal/logger"
	"github.com/example/sellerspro/internal/routes"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("database setup failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := routes.NewApp(cfg, log)
	routes.Register(app, db, cfg, log, registry)

	if cfg.CleanupSchedule != "" {
		scheduler, err := jobs.NewCompactor(db, cfg.CleanupRetention, log).Schedule(cfg.CleanupSchedule)
		if err != nil {
			log.WithError(err).Fatal("compaction setup failed")
		}
		defer func() { <-scheduler.Stop().Done() }()
		log.WithField("schedule", cfg.CleanupSchedule).Info("compaction scheduled")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.WithField("port", cfg.AppPort).Info("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.WithError(err).Fatal("fiber.Listen error")
	}
}
