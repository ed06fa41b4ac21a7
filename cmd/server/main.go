package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"climate-records/internal/config"
	"climate-records/internal/handlers"
	"climate-records/internal/repository"
	"climate-records/internal/services"
	"climate-records/pkg/database"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("climate-records-api", version, cfg.LogLevel())
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting climate records API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	metricsCollector := metrics.NewCollector("climate_records")

	dbConfig := cfg.DBConfig()
	if cfg.Database.AutoMigrate {
		if err := database.NewMigrationService(dbConfig, logger).Up(); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to apply migrations", logging.Fields{}, err)
		}
	}

	db, err := database.Open(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	repo := repository.NewRecordRepository(db, logger, metricsCollector)

	recordService := services.NewRecordService(repo, logger, metricsCollector)
	statsService := services.NewStatisticsService(repo, logger, metricsCollector)
	ingestionService := services.NewIngestionService(repo, logger, metricsCollector, services.IngestionOptions{
		HTTPTimeout:      cfg.Ingestion.HTTPTimeout,
		FailureThreshold: cfg.Ingestion.FailureThreshold,
		OpenTimeout:      cfg.Ingestion.OpenTimeout,
	})

	recordHandler := handlers.NewRecordHandler(recordService, statsService, ingestionService, logger, metricsCollector)

	router := handlers.NewRouter(recordHandler, handlers.RouterOptions{
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		RateLimitEnabled:  cfg.RateLimit.Enabled,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
		MetricsHandler:    promhttp.Handler(),
	}, logger, metricsCollector)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
