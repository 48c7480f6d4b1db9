package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sendlater/internal/audit"
	"sendlater/internal/config"
	"sendlater/internal/constants"
	"sendlater/internal/database"
	"sendlater/internal/permissions"
	"sendlater/internal/retry"
	"sendlater/internal/service"
	"sendlater/internal/tracing"
	"sendlater/pkg/onebot"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("sendlater %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting sendlater")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    "sendlater",
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize the job store with exponential backoff retry
	var db *database.Database
	backoffConfig := retry.DefaultBackoffConfig()
	if cfg.Retry.InitialBackoffMs > 0 {
		backoffConfig.InitialDelay = time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond
	}
	if cfg.Retry.MaxBackoffMs > 0 {
		backoffConfig.MaxDelay = time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond
	}
	backoffConfig.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	backoff := retry.NewBackoff(backoffConfig)

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	auditLog, err := audit.New(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			logger.Warnf("Failed to close audit log: %v", err)
		}
	}()

	watcher := config.NewWatcher(*configPath, cfg, logger)
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Error("Configuration watcher stopped")
		}
	}()

	guard := permissions.NewGuard(watcher, logger)

	client := onebot.NewClient(onebot.ClientConfig{
		BaseURL:     cfg.OneBot.APIBaseURL,
		AccessToken: cfg.OneBot.AccessToken,
		Timeout:     time.Duration(cfg.OneBot.TimeoutSec) * time.Second,
	})

	executor := service.NewExecutor(client, logger)
	notifier := service.NewAdminNotifier(client, watcher, logger)
	scheduler := service.NewScheduler(db, executor, notifier, auditLog, logger)
	defer scheduler.Stop()

	if err := scheduler.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover pending jobs: %w", err)
	}

	sweeper, err := service.NewRetentionSweeper(db, cfg.CleanupSchedule, func() int {
		return watcher.GetConfig().RetentionDays
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create retention sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	commands := service.NewCommandService(guard, scheduler, auditLog, logger)
	dispatcher := NewDispatcher(commands, client, logger)

	if cfg.OneBot.EventMode == "ws" {
		stream := onebot.NewStream(onebot.StreamConfig{
			WSURL:       cfg.OneBot.WSURL,
			AccessToken: cfg.OneBot.AccessToken,
		}, dispatcher.HandleEvent, logger)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Event stream stopped")
			}
		}()
	}

	server := NewServer(ctx, cfg.Server, dispatcher, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
