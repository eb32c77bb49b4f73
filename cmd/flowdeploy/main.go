// Package main implements the entry point for the flowdeploy server.
// Flowdeploy deploys versioned flows from a flow registry onto remote NiFi
// instances: path-addressed placement, naming-conflict resolution, parameter
// context synchronization and paired source/destination batches.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/c360/flowdeploy/config"
	"github.com/c360/flowdeploy/deploy"
	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/health"
	"github.com/c360/flowdeploy/metric"
	"github.com/c360/flowdeploy/nifi"
	"github.com/c360/flowdeploy/pkg/retry"
	"github.com/c360/flowdeploy/service"
	"github.com/c360/flowdeploy/targetstore"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "flowdeploy"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, cliCfg)

	// The bootstrap logger predates config load; rebuild it with the
	// effective logging settings.
	logger = setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	nc, js, err := connectToNATS(ctx, cfg)
	if err != nil {
		return err
	}
	defer nc.Close()

	store, err := targetstore.NewStore(ctx, js)
	if err != nil {
		return fmt.Errorf("create target store: %w", err)
	}
	if err := seedTargets(ctx, cfg, store); err != nil {
		return err
	}

	metricsRegistry := metric.NewMetricsRegistry()

	engine, err := buildEngine(cfg, store, metricsRegistry, logger)
	if err != nil {
		return err
	}

	monitor := health.NewMonitor()
	monitor.Register("nats", natsProbe(nc))
	monitor.Register("target-store", storeProbe(store))

	server := service.NewServer(engine, store, metricsRegistry, monitor, logger)
	return serveHTTP(ctx, cfg, server, logger)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting flowdeploy",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// applyCLIOverrides lets explicit flags win over file and environment values.
func applyCLIOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}
	if cliCfg.Listen != "" {
		cfg.HTTP.Listen = cliCfg.Listen
	}
}

// connectToNATS establishes the NATS connection and a JetStream handle. The
// initial connect is retried with backoff so the server survives starting
// before its NATS peer.
func connectToNATS(ctx context.Context, cfg *config.Config) (*nats.Conn, jetstream.JetStream, error) {
	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)

	opts := []nats.Option{
		nats.Name(cfg.NATS.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait.Std()),
	}
	var nc *nats.Conn
	err := retry.Do(ctx, retry.Quick(), func() error {
		var connErr error
		nc, connErr = nats.Connect(cfg.NATS.URL, opts...)
		return connErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return nc, js, nil
}

// seedTargets registers targets declared in the config file. Targets that
// already exist in the store are left untouched.
func seedTargets(ctx context.Context, cfg *config.Config, store *targetstore.Store) error {
	for _, seed := range cfg.Targets {
		record := &targetstore.TargetRecord{
			Target: nifi.RemoteTarget{
				ID:            seed.ID,
				Name:          seed.Name,
				BaseURL:       seed.BaseURL,
				CredentialRef: seed.CredentialRef,
				Hierarchy:     seed.Hierarchy,
				Description:   seed.Description,
			},
		}
		err := store.CreateTarget(ctx, record)
		if err == nil {
			slog.Info("Seeded target from config", "target", seed.ID)
			continue
		}
		if errors.Is(err, errors.ErrAlreadyExists) {
			slog.Debug("Target already registered", "target", seed.ID)
			continue
		}
		return fmt.Errorf("seed target %s: %w", seed.ID, err)
	}
	return nil
}

// natsProbe reports the state of the NATS connection.
func natsProbe(nc *nats.Conn) health.Probe {
	return func(_ context.Context) health.Status {
		switch nc.Status() {
		case nats.CONNECTED:
			return health.NewHealthy("", "connected")
		case nats.RECONNECTING:
			return health.NewDegraded("", "reconnecting")
		default:
			return health.NewUnhealthy("", nc.Status().String())
		}
	}
}

// storeProbe verifies the target store answers a list call.
func storeProbe(store *targetstore.Store) health.Probe {
	return func(ctx context.Context) health.Status {
		if _, err := store.ListTargets(ctx); err != nil {
			return health.NewUnhealthy("", err.Error())
		}
		return health.NewHealthy("", "reachable")
	}
}

// buildEngine wires the NiFi client and the deployment engine from config.
func buildEngine(
	cfg *config.Config,
	store *targetstore.Store,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*deploy.Engine, error) {
	username, password, token := config.Credentials()
	credentials := nifi.StaticCredentials{
		Username: username,
		Password: password,
		Token:    token,
	}

	await := retry.AwaitConfig{
		MaxAttempts: cfg.Engine.AwaitAttempts,
		Interval:    cfg.Engine.AwaitInterval.Std(),
	}

	client, err := nifi.NewHTTPClient(nifi.HTTPClientConfig{
		Timeout:            cfg.Engine.ClientTimeout.Std(),
		RequestsPerSecond:  cfg.Engine.RequestsPerSecond,
		Burst:              cfg.Engine.RequestBurst,
		InsecureSkipVerify: cfg.Engine.InsecureSkipVerify,
		Await:              await,
	}, credentials, logger)
	if err != nil {
		return nil, fmt.Errorf("create NiFi client: %w", err)
	}

	engine, err := deploy.NewEngine(client, client, store, deploy.Options{
		Templates: store,
		Await:     await,
		Metrics:   metricsRegistry,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create deployment engine: %w", err)
	}
	return engine, nil
}

// serveHTTP runs the HTTP server until a shutdown signal arrives.
func serveHTTP(ctx context.Context, cfg *config.Config, server *service.Server, logger *slog.Logger) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Listen,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Std(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Std(),
	}

	group, groupCtx := errgroup.WithContext(signalCtx)

	group.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTP.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Std())
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("Flowdeploy shutdown complete")
	return nil
}
