package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/compartedu/backend/internal/adapter/handler"
	"github.com/compartedu/backend/internal/adapter/storage"
	"github.com/compartedu/backend/internal/config"
	"github.com/compartedu/backend/internal/core/service"
	"github.com/compartedu/backend/internal/port"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mysql")
	}
	logger.Info().Msg("connected to mysql")

	// Redis backs idempotency keys and the availability cache; the engine
	// runs without it, so an unreachable redis only costs those features.
	var cache port.CacheRepository
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, idempotency and availability cache disabled")
	} else {
		cache = storage.NewRedisAdapter(rdb)
		logger.Info().Msg("connected to redis")
	}

	// Stores
	stockStore := storage.NewMySQLStockStore(db)
	requestStore := storage.NewMySQLRequestStore(db)
	listingStore := storage.NewMySQLListingStore(db)
	shipmentStore := storage.NewMySQLShipmentStore(db)

	// Services
	stockService := service.NewStockService(stockStore, logger)
	listingService := service.NewListingService(listingStore, stockStore, stockService, logger)
	requestService := service.NewRequestService(requestStore, listingStore, stockService, listingService, cache, logger)
	shipmentService := service.NewShipmentService(shipmentStore, requestStore, logger)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(listingService, stockService, requestService, shipmentService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	rdb.Close()
	db.Close()
	logger.Info().Msg("connections closed")
}
