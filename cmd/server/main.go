package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fi44er/tradecycle/config"
	"github.com/Fi44er/tradecycle/db"
	"github.com/Fi44er/tradecycle/internal/bot"
	"github.com/Fi44er/tradecycle/internal/httpapi"
	"github.com/Fi44er/tradecycle/internal/metrics"
	"github.com/Fi44er/tradecycle/internal/repository"
	"github.com/Fi44er/tradecycle/internal/service"
	"github.com/Fi44er/tradecycle/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	logger := utils.InitLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatal("Failed to load config: ", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config: ", err)
	}

	database, err := db.ConnectDb(cfg.DBDriver, cfg.DB_URL, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if err := db.Migrate(database, cfg.DBAutoMigrate, logger); err != nil {
		logger.Fatal(err)
	}
	if err := db.SeedPlans(database, logger); err != nil {
		logger.Fatal(err)
	}
	if err := db.EnsureAdmin(database, cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := repository.NewRepository(database, logger)
	m := metrics.New()
	svc, err := service.NewService(repo, &cfg, logger, service.WithMetrics(m))
	if err != nil {
		logger.Fatal("Failed to create service: ", err)
	}

	if cfg.TelegramBotToken != "" && cfg.AdminChatID != 0 {
		telegramBot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Fatal("Failed to create bot API: ", err)
		}

		var reviewerID string
		if cfg.AdminEmail != "" {
			admin, err := repo.GetUserByEmail(ctx, utils.NormalizeEmail(cfg.AdminEmail), nil)
			if err != nil {
				logger.Fatal("Failed to load bootstrap admin: ", err)
			}
			if admin != nil {
				reviewerID = admin.ID
			}
		}
		if reviewerID == "" {
			logger.Warn("ADMIN_EMAIL is not set: the Telegram bot will only send notifications")
		}

		adminBot := bot.NewBot(telegramBot, svc, logger, svc.GetAdminChatID(), reviewerID)
		svc.SetNotifier(adminBot)
		go adminBot.Start(ctx)
	} else {
		logger.Info("Telegram bot disabled")
	}

	srv := httpapi.NewServer(svc, &cfg, logger, m).HTTPServer(cfg.HTTPAddr)
	go func() {
		logger.Infof("🚀 HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed: ", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Errorf("Close database: %v", err)
		}
	}
}
