package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/config"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/constants"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/kvstore"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/network"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/queue"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/realtime"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/retry"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/service"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/tracing"
	"github.com/sanusi-mayowa/QuickTalk-sub000/pkg/remotestore"

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
		fmt.Printf("quicktalkd %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
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
	}).Info("Starting quicktalkd")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    "quicktalk-sync",
		ServiceVersion: Version,
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

	// The local store opens with exponential backoff; transient lock
	// contention at startup should not kill the daemon.
	var kv *kvstore.SQLStore
	backoff := retry.NewBackoff(retry.DefaultBackoffConfig())
	err = backoff.Retry(ctx, func() error {
		var initErr error
		kv, initErr = kvstore.New(cfg.Storage.Path)
		if initErr != nil {
			logger.Warnf("Failed to open local store: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to open local store after retries: %w", err)
	}
	defer kv.Close()

	q := queue.New(kv, logger)

	remote := remotestore.NewClient(
		cfg.Remote.BaseURL,
		cfg.Remote.AuthToken,
		time.Duration(cfg.Remote.TimeoutSec)*time.Second,
	)

	transport := realtime.NewWebSocketTransport(cfg.Realtime.URL, cfg.Realtime.AuthToken, logger)
	monitor := network.NewMonitor(logger)
	transport.SetConnectivityListener(monitor.SetOnline)
	transport.Start(ctx)
	defer transport.Stop()

	selfID, username := resolveIdentity(ctx, remote, cfg.Remote.AuthUserID, logger)

	publisher := service.NewStatusPublisher(q, monitor, logger)
	notifier := service.NewLogNotifier(logger)
	engine := service.NewSyncEngine(q, remote, publisher, notifier, cfg.Remote.AuthUserID, logger)

	typingCfg := service.TypingConfig{
		Throttle:      time.Duration(cfg.Typing.ThrottleMs) * time.Millisecond,
		QuietPeriod:   time.Duration(cfg.Typing.QuietMs) * time.Millisecond,
		TTL:           time.Duration(cfg.Typing.TTLMs) * time.Millisecond,
		SweepInterval: time.Duration(cfg.Typing.SweepMs) * time.Millisecond,
	}
	typing := service.NewTypingCoordinator(transport, selfID, username, typingCfg, logger)
	typing.Start(ctx)
	defer typing.Stop()

	presence := service.NewPresenceTracker(transport, selfID, logger)
	statuses := service.NewStatusTracker(remote, selfID, logger)
	channels := realtime.NewChannelManager(transport, logger)

	facade := service.NewEngine(service.EngineDeps{
		Queue:     q,
		Sync:      engine,
		Publisher: publisher,
		Monitor:   monitor,
		Typing:    typing,
		Presence:  presence,
		Statuses:  statuses,
		Channels:  channels,
		SelfID:    selfID,
		Logger:    logger,
	})
	defer facade.Close()

	scheduler := service.NewScheduler(engine, time.Duration(cfg.Sync.IntervalSec)*time.Second, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	outbox := service.NewOutboxMonitor(q,
		time.Duration(cfg.Sync.StaleThresholdSec)*time.Second,
		time.Duration(cfg.Sync.StaleCheckIntervalSec)*time.Second,
		logger)
	outbox.Start(ctx)
	defer outbox.Stop()

	server := NewServer(cfg, facade, logger)
	serverErrCh := make(chan error, 1)
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
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// resolveIdentity fetches our own profile so typing and presence signals
// carry the right id from the first emission. When the store is unreachable
// at boot the auth id stands in; the first sync pass re-resolves anyway.
func resolveIdentity(ctx context.Context, remote gateway.RemoteStore, authUserID string, logger *logrus.Logger) (string, string) {
	lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	docs, err := remote.Query(lookupCtx, "profiles", gateway.Eq("auth_user_id", authUserID))
	if err != nil || len(docs) == 0 {
		logger.WithError(err).Warn("Could not resolve own profile at startup")
		return authUserID, ""
	}
	return docs[0].String("id"), docs[0].String("username")
}
