// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/riftfi/reactivation-backend/internal/config"
	"github.com/riftfi/reactivation-backend/internal/controller"
	"github.com/riftfi/reactivation-backend/internal/db"
	"github.com/riftfi/reactivation-backend/internal/generator"
	"github.com/riftfi/reactivation-backend/internal/notify"
	"github.com/riftfi/reactivation-backend/internal/repository"
	"github.com/riftfi/reactivation-backend/internal/service"
	"github.com/riftfi/reactivation-backend/internal/store"
	"github.com/riftfi/reactivation-backend/internal/whatsapp"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer conn.Close()

	userRepo := &repository.UserRepository{DB: conn}
	tracker := store.LoadSentTracker(filepath.Join(cfg.DataDir, "sent_users.json"), logger)
	sendLog := store.NewSendLog(filepath.Join(cfg.DataDir, "send_log.json"), logger)

	gen := generator.NewOpenAIGenerator(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)

	waClient := whatsapp.NewClient(cfg.WhatsApp.DataDir, cfg.WhatsApp.Headless, logger)
	if err := waClient.Init(); err != nil {
		// Pairing happens through /qr; the server still starts.
		logger.Error("whatsapp init failed, visit /qr once the browser is up", zap.Error(err))
	}
	defer waClient.Close()

	var events *notify.Publisher
	if cfg.AMQP.URL != "" {
		events, err = notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		if err != nil {
			logger.Error("amqp unavailable, batch events disabled", zap.Error(err))
		} else {
			defer events.Close()
		}
	}

	batch := service.NewBatchService(
		userRepo,
		gen,
		waClient,
		tracker,
		sendLog,
		events,
		service.BatchConfig{
			AdminPhone:        cfg.Campaign.AdminPhone,
			DailyCap:          cfg.Campaign.DailyCap,
			SessionBreakEvery: cfg.Campaign.SessionBreakEvery,
			MinDelay:          cfg.Campaign.MinDelay,
			MaxDelay:          cfg.Campaign.MaxDelay,
			MinSessionBreak:   cfg.Campaign.MinSessionBreak,
			MaxSessionBreak:   cfg.Campaign.MaxSessionBreak,
		},
		logger,
	)

	scheduler := service.NewScheduler(
		batch,
		cfg.Location(),
		cfg.Campaign.ScheduleStartHour,
		cfg.Campaign.ScheduleEndHour,
		logger,
	)
	scheduler.ScheduleNext()
	defer scheduler.Stop()

	statusController := &controller.StatusController{
		Batch:     batch,
		Scheduler: scheduler,
		Tracker:   tracker,
		SendLog:   sendLog,
		WhatsApp:  waClient,
		Logger:    logger,
		StartedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Get("/", statusController.Status)
	r.Get("/qr", statusController.QR)
	r.Get("/categories", statusController.Categories)
	r.Post("/run", statusController.Run)
	r.Post("/reset", statusController.Reset)
	r.Get("/logs", statusController.Logs)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Info("server running", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
