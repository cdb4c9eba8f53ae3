// Package main provides the entry point for the full cohort outreach server:
// Postgres patient registry, Redis reminder dedupe, and the REST surface.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cohort-outreach-mcp-server/internal/api"
	"github.com/cohort-outreach-mcp-server/internal/catalog"
	"github.com/cohort-outreach-mcp-server/internal/config"
	"github.com/cohort-outreach-mcp-server/internal/database"
	"github.com/cohort-outreach-mcp-server/internal/notify"
	"github.com/cohort-outreach-mcp-server/internal/outreachlog"
	"github.com/cohort-outreach-mcp-server/internal/repository"
	"github.com/cohort-outreach-mcp-server/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Run migrations before opening the pool
	migrationRunner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		logger.Fatalf("Failed to create migration runner: %v", err)
	}
	if err := migrationRunner.Up(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	migrationRunner.Close()

	db, err := database.NewConnection(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		Database:    cfg.Database.Database,
		Username:    cfg.Database.Username,
		Password:    cfg.Database.Password,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnLife: cfg.Database.ConnMaxLifetime,
		MaxConnIdle: cfg.Database.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := repository.NewPatientRepository(db.Pool, logger)

	cat, err := catalog.Load(cfg.Catalog.Path, logger)
	if err != nil {
		logger.Fatalf("Failed to load cohort catalog: %v", err)
	}

	classifier, err := service.NewClassifierService(logger, cat)
	if err != nil {
		logger.Fatalf("Failed to create classifier service: %v", err)
	}

	deduper, err := notify.NewRedisDeduper(ctx, notify.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}

	portal := notify.NewPortalHub(logger)
	defer portal.Close()

	dispatcher := notify.NewDispatcher(logger, store, deduper,
		notify.DispatcherConfig{
			DedupeTTL:     cfg.Notify.DedupeTTL,
			RatePerSecond: cfg.Notify.RatePerSecond,
			RateBurst:     cfg.Notify.RateBurst,
		},
		portal,
		notify.NewWebhookSender(notify.ChannelEmail, notify.WebhookConfig{
			URL:     cfg.Notify.EmailWebhookURL,
			Timeout: cfg.Notify.WebhookTimeout,
		}),
		notify.NewWebhookSender(notify.ChannelSMS, notify.WebhookConfig{
			URL:     cfg.Notify.SMSWebhookURL,
			Timeout: cfg.Notify.WebhookTimeout,
		}),
		notify.NewWebhookSender(notify.ChannelPhoneCall, notify.WebhookConfig{
			URL:     cfg.Notify.PhoneWebhookURL,
			Timeout: cfg.Notify.WebhookTimeout,
		}),
	)
	defer dispatcher.Close()

	auditLog, err := outreachlog.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
	if err != nil {
		logger.Fatalf("Failed to open outreach log: %v", err)
	}
	defer auditLog.Close()

	server := api.NewServer(cfg, logger, api.Deps{
		Classifier:  classifier,
		Store:       store,
		Dispatcher:  dispatcher,
		Portal:      portal,
		OutreachLog: auditLog,
		DB:          db,
	})

	logger.WithFields(logrus.Fields{
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"catalog_version": cat.Version(),
	}).Info("Starting Cohort Outreach Server")

	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
