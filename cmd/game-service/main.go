package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"bistro-rush/internal/api"
	"bistro-rush/internal/auth"
	"bistro-rush/internal/config"
	"bistro-rush/internal/database/migrations"
	"bistro-rush/internal/game"
	gamedb "bistro-rush/internal/game/db"
	gamekafka "bistro-rush/internal/game/kafka"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/monitoring"
	"bistro-rush/internal/notifier"
	"bistro-rush/internal/pantry"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	log.Info("STARTUP", "bistro-rush game service starting")

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("failed to connect to Postgres: %v", err))
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.Options{
			MigrationsDir: cfg.Database.MigrationsDir,
			SeedData:      true,
		}, log)
		if err := runner.Run(); err != nil {
			log.Fatal("STARTUP", fmt.Sprintf("migrations failed: %v", err))
		}
	}

	// --- Auth ---
	var verifier auth.Verifier
	if cfg.Auth.OIDCIssuer == "" {
		log.Fatal("STARTUP", "OIDC_ISSUER is not set")
	}

	var tokenCache *auth.RedisTokenCache
	if redisClient, err := auth.InitializeTokenCache(cfg.Redis.Addr, log); err != nil {
		log.Warn("STARTUP", fmt.Sprintf("Redis unavailable, token cache disabled: %v", err))
	} else {
		tokenCache = auth.NewRedisTokenCache(redisClient, cfg.Auth.TokenCacheTTL)
		defer redisClient.Close()
	}

	verifier, err := auth.NewOIDCVerifier(context.Background(), cfg.Auth.OIDCIssuer, tokenCache, log)
	if err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("OIDC setup failed: %v", err))
	}

	// --- Kafka ---
	var events game.EventPublisher
	if cfg.Kafka.Enabled {
		producer := gamekafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
		log.LogKafka("CONNECTED", cfg.Kafka.Topic, fmt.Sprintf("brokers=%v", cfg.Kafka.Brokers))
	} else {
		events = gamekafka.NoopPublisher{}
		log.Warn("STARTUP", "Kafka disabled, lifecycle events will not be streamed")
	}

	// --- Core services ---
	store := &gamedb.DB{Bun: bunDB}
	metrics := monitoring.NewMetrics()
	hub := notifier.NewHub(log)

	gameService := game.NewService(store, hub, events, metrics, log, cfg.Game)
	pantryService := pantry.NewService(store, hub, log)
	generator := game.NewGenerator(store, hub, events, metrics, log, cfg.Game)
	watcher := game.NewWatcher(store, gameService, log, cfg.Game)

	watcherCtx, stopWatcher := context.WithCancel(context.Background())
	go watcher.Run(watcherCtx)

	// --- HTTP ---
	handler := api.NewHandler(gameService, pantryService, log)
	wsHandler := api.NewWSHandler(verifier, hub, gameService, generator, log)
	router := api.NewRouter(handler, wsHandler, verifier, metrics)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("STARTUP", fmt.Sprintf("game service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SHUTDOWN", "shutdown signal received")

	stopWatcher()
	generator.Shutdown()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SHUTDOWN", fmt.Sprintf("server forced to shutdown: %v", err))
	}

	log.Info("SHUTDOWN", "game service stopped")
}
