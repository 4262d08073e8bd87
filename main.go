package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ta-signal-bot/config"
	"ta-signal-bot/internal/api"
	"ta-signal-bot/internal/circuit"
	"ta-signal-bot/internal/configstore"
	"ta-signal-bot/internal/database"
	"ta-signal-bot/internal/engine"
	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/history"
	"ta-signal-bot/internal/listener"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/publisher"
	"ta-signal-bot/internal/strategy"
	"ta-signal-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		Component:   "ta-signal-bot",
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)
	logger.Info("Starting TA signal bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vault overlays infrastructure credentials when enabled.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal("Failed to create vault client", "error", err.Error())
	}
	if vaultClient.Enabled() {
		if err := vaultClient.ApplyTo(ctx, cfg); err != nil {
			logger.Fatal("Failed to load secrets from vault", "error", err.Error())
		}
		logger.Info("Vault credentials applied")
	}

	// PostgreSQL
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err.Error())
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", "error", err.Error())
	}
	repo := database.NewRepository(db)

	// Redis carries the candle/signal streams and the document config store.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Address,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
		PoolSize: cfg.RedisConfig.PoolSize,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to redis", "error", err.Error())
	}
	logger.Info("Connected to redis", "address", cfg.RedisConfig.Address)

	eventBus := events.NewEventBus()
	registry := strategy.NewRegistry()

	// Config store chain: data-manager first, then Redis, then Postgres.
	var stores []configstore.Store
	if cfg.DataManagerConfig.Enabled {
		stores = append(stores, configstore.NewDataManagerStore(cfg.DataManagerConfig.BaseURL))
	}
	stores = append(stores,
		configstore.NewRedisStore(redisClient),
		configstore.NewPostgresStore(repo),
	)

	bootDefaults := &configstore.AppConfig{
		EnabledStrategies: registry.IDs(),
		Symbols:           cfg.SignalsConfig.Symbols,
		CandlePeriods:     cfg.SignalsConfig.Timeframes,
		MinConfidence:     cfg.SignalsConfig.MinConfidence,
		MaxConfidence:     cfg.SignalsConfig.MaxConfidence,
		MaxPositions:      cfg.SignalsConfig.MaxPositions,
		PositionSizes:     cfg.SignalsConfig.PositionSizes,
	}
	configManager := configstore.NewManager(stores, bootDefaults, registry, eventBus, logger)
	configManager.SetCacheTTL(time.Duration(cfg.SignalsConfig.ConfigCacheTTL) * time.Second)

	// History loader over the candle table.
	loader := history.NewLoader(history.NewRepositorySource(repo), strategy.MinWindow, logger)

	// Outbound sinks.
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	sinks := []publisher.Sink{
		publisher.NewStreamSink(redisClient),
		publisher.NewAuditSink(repo),
	}
	if cfg.HTTPSinkConfig.Enabled {
		breaker := circuit.NewBreaker(&circuit.BreakerConfig{
			Enabled:         cfg.HTTPSinkConfig.BreakerEnabled,
			MaxFailures:     cfg.HTTPSinkConfig.BreakerFailures,
			CooldownSeconds: cfg.HTTPSinkConfig.BreakerCooldown,
		})
		sinks = append(sinks, publisher.NewHTTPSink(cfg.HTTPSinkConfig.Endpoint, breaker, zlog))
		logger.Info("HTTP sink enabled", "endpoint", cfg.HTTPSinkConfig.Endpoint)
	}
	pub := publisher.New(sinks, eventBus, logger)
	pub.Start(ctx)

	// Engine and worker pool.
	eng := engine.New(registry, loader, configManager, pub, eventBus, logger, engine.Options{
		Risk: engine.RiskParams{
			StopLossPct:   cfg.SignalsConfig.StopLossPct,
			TakeProfitPct: cfg.SignalsConfig.TakeProfitPct,
			ATRStopMult:   cfg.SignalsConfig.ATRStopMult,
			ATRTakeMult:   cfg.SignalsConfig.ATRTakeMult,
		},
		DisableAfterPanics: cfg.EngineConfig.DisableAfterPanics,
	})
	pool := engine.NewPool(eng, cfg.EngineConfig.Shards, cfg.EngineConfig.QueueDepth, logger)
	pool.Start(ctx)

	// Candle listener.
	lst := listener.New(redisClient, pool, eventBus, logger)
	go func() {
		if err := lst.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Listener stopped", "error", err.Error())
		}
	}()

	// Admin API.
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, configManager, registry, repo, eng, eventBus)
	go func() {
		logger.Info("Admin API listening", "host", cfg.ServerConfig.Host, "port", cfg.ServerConfig.Port)
		if err := server.Start(); err != nil {
			logger.Error("API server stopped", "error", err.Error())
		}
	}()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig.String())

	cancel()

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API shutdown incomplete", "error", err.Error())
	}

	// Drain the pipeline: workers finish in-flight candles, the publisher
	// flushes its queues.
	done := make(chan struct{})
	go func() {
		pool.Wait()
		pub.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("Pipeline drained")
	case <-time.After(shutdownTimeout):
		logger.Warn("Drain timed out, exiting anyway")
	}

	logger.Info("Shutdown complete")
}
