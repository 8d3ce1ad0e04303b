package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tracerun/coreruntime/internal/agents"
	"github.com/tracerun/coreruntime/internal/cache"
	"github.com/tracerun/coreruntime/internal/compression"
	"github.com/tracerun/coreruntime/internal/config"
	"github.com/tracerun/coreruntime/internal/contracts"
	"github.com/tracerun/coreruntime/internal/critique"
	"github.com/tracerun/coreruntime/internal/eventbus"
	"github.com/tracerun/coreruntime/internal/eventstream"
	"github.com/tracerun/coreruntime/internal/gut"
	"github.com/tracerun/coreruntime/internal/httpapi"
	"github.com/tracerun/coreruntime/internal/ingestion"
	"github.com/tracerun/coreruntime/internal/logging"
	"github.com/tracerun/coreruntime/internal/maintenance"
	"github.com/tracerun/coreruntime/internal/oracle"
	"github.com/tracerun/coreruntime/internal/storage/sqlitestore"
	"github.com/tracerun/coreruntime/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "configs/coreruntime.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "Override server port (0 = use config)")
	env := flag.String("env", "development", "Logging environment: development or production")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logging.Configure(logging.Env(*env), *logLevel)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log.Info().
		Int("server_port", cfg.Server.Port).
		Int("nats_port", cfg.NATS.Port).
		Str("oracle_base_url", cfg.Oracle.BaseURL).
		Str("oracle_model", cfg.Oracle.Model).
		Msg("starting coreruntime")

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}

	sqlStore, err := sqlitestore.Open(filepath.Join(cfg.Storage.DataDir, "coreruntime.db"), true)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open sqlite store")
	}
	defer sqlStore.Close()

	telManager, err := telemetry.NewManager(filepath.Join(cfg.Storage.DataDir, "telemetry"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry manager")
	}

	contractStore, err := contracts.Open(filepath.Join(cfg.Storage.DataDir, "contracts"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open contract ledger")
	}

	natsServer, err := eventbus.EmbeddedServer(cfg.NATS.Host, cfg.NATS.Port)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start embedded NATS server")
	}
	defer natsServer.Shutdown()
	log.Info().Int("port", cfg.NATS.Port).Msg("embedded NATS server started")

	bus, err := eventbus.Connect(natsServer.ClientURL(), "coreruntime")
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect event bus, contract events will not be published")
	}

	registry := agents.NewRegistry()
	dispatcher := agents.NewDispatcher(registry, contractStore, bus)

	gutMirror, err := cache.NewGutMirror(cfg.Cache.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect gut mirror, continuing without Redis fan-out")
	}
	gutManager := gut.NewManager(gutMirror)

	oracleClient := oracle.NewHTTPOracle(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout)
	compressionEngine := compression.New(oracleClient)
	critiqueEngine := critique.New(oracleClient)
	ingestionEngine := ingestion.New(sqlStore, telManager)
	streamHandler := eventstream.NewHandler(gutManager)

	router := httpapi.NewRouter(httpapi.Deps{
		Registry:    registry,
		Dispatcher:  dispatcher,
		Contracts:   contractStore,
		Ingestion:   ingestionEngine,
		GutManager:  gutManager,
		Compression: compressionEngine,
		Critique:    critiqueEngine,
		Stream:      streamHandler,
	})

	sweeper := maintenance.NewSweeper(registry, gutManager, 2*time.Minute, cfg.Critic.IdleReapInterval, log.Logger)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start maintenance sweeper")
	}
	defer sweeper.Stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	if gutMirror != nil {
		_ = gutMirror.Close()
	}

	log.Info().Msg("coreruntime shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		log.Info().Str("path", path).Msg("config file not found, using defaults")
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}
