package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgforward/internal/config"
	"tgforward/internal/constants"
	"tgforward/internal/database"
	"tgforward/internal/retry"
	"tgforward/internal/service"
	"tgforward/internal/tracing"
	"tgforward/pkg/telegram"
	"tgforward/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("tgforward %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
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
	}).Info("Starting tgforward")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			if level > logrus.InfoLevel {
				level = logrus.InfoLevel
			}
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
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

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoffConfig := retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	}
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
	defer db.Close()

	httpClient := &http.Client{
		Timeout: time.Duration(cfg.Telegram.HTTPTimeoutSec) * time.Second,
	}

	factory := service.ClientFactory(func(sessionString string) telegram.Client {
		return telegram.NewClientWithLogger(types.ClientConfig{
			GatewayURL:    cfg.Telegram.GatewayURL,
			APIID:         cfg.Telegram.APIID,
			APIHash:       cfg.Telegram.APIHash,
			DeviceName:    cfg.Telegram.DeviceName,
			SessionString: sessionString,
		}, httpClient, logger)
	})

	sessionTTL := time.Duration(cfg.Auth.SessionTTLDays) * 24 * time.Hour
	store := service.NewDurableSessionStore(db, sessionTTL, logger)

	connManager := service.NewConnectionManager(factory, store, logger)

	broker := service.NewAuthBroker(factory, store, connManager, service.BrokerConfig{
		LoginTTL:       time.Duration(cfg.Auth.LoginTTLMinutes) * time.Minute,
		OtpWaitTimeout: time.Duration(cfg.Auth.OtpWaitTimeoutSec) * time.Second,
		SweepInterval:  time.Duration(cfg.Auth.SweepIntervalSec) * time.Second,
	}, logger)
	broker.Start()
	defer broker.Stop()

	matcher := service.NewSignalMatcher(cfg.Telegram.PosterUsername, cfg.Telegram.BypassSenderCheck)

	ctxWithVerbose := context.WithValue(ctx, service.VerboseContextKey, *verbose)

	scheduler := service.NewForwardingScheduler(connManager, matcher, service.SchedulerConfig{
		SourceChannel: cfg.Telegram.SourceChannel,
		TargetChannel: cfg.Telegram.TargetChannel,
		PollInterval:  time.Duration(cfg.Telegram.PollIntervalSec) * time.Second,
		FetchLimit:    cfg.Telegram.FetchLimit,
		FetchWindow:   time.Duration(cfg.Telegram.FetchWindowSec) * time.Second,
		TickTimeout:   time.Duration(constants.DefaultTickTimeoutSec) * time.Second,
		Backoff:       backoffConfig,
	}, logger)
	defer scheduler.Stop()

	forwarder := service.NewForwardingService(scheduler, connManager, logger)

	// Restore the persisted session so forwarding can resume after a restart.
	if session, err := store.Load(ctxWithVerbose); err == nil && session != nil {
		if ok, err := connManager.ConnectWithSession(ctxWithVerbose, session); err != nil {
			logger.Warnf("Failed to restore session on startup: %v", err)
		} else if ok {
			logger.Info("Session restored, starting forwarding")
			if err := forwarder.Start(ctxWithVerbose); err != nil {
				logger.Warnf("Failed to start forwarding on startup: %v", err)
			}
		}
	}

	server := NewServer(cfg, forwarder, broker, store, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
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
