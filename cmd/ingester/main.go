package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"climate-records/internal/config"
	"climate-records/internal/models"
	"climate-records/internal/repository"
	"climate-records/internal/services"
	"climate-records/pkg/database"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

const version = "1.0.0"

// dryRunRepository validates and counts rows without writing them.
type dryRunRepository struct {
	repository.RecordRepository
	countries  map[string]bool
	continents map[string]bool
}

func (d *dryRunRepository) SaveFullRecord(_ context.Context, rec *models.FullRecord) error {
	if rec.HasISOCode() {
		d.countries[rec.Country] = true
	} else {
		d.continents[rec.Country] = true
	}
	return nil
}

func main() {
	url := flag.String("url", "", "URL of the emissions CSV (default: configured source URL)")
	path := flag.String("file", "", "Local emissions CSV to ingest instead of a URL")
	dryRun := flag.Bool("dry-run", false, "Parse and validate every row without touching the database")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("climate-records-ingester", version, cfg.LogLevel())
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := *path
	if source == "" {
		source = *url
		if source == "" {
			source = cfg.Ingestion.SourceURL
		}
	}

	logger.Info(ctx, "[INGESTER_START] Starting emissions dataset ingestion", logging.Fields{
		"version": version,
		"source":  source,
		"dry_run": *dryRun,
	})

	metricsCollector := metrics.NewCollector("climate_records_ingester")

	var (
		repo   repository.RecordRepository
		dryRec *dryRunRepository
	)
	if *dryRun {
		dryRec = &dryRunRepository{countries: map[string]bool{}, continents: map[string]bool{}}
		repo = dryRec
	} else {
		dbConfig := cfg.DBConfig()
		if cfg.Database.AutoMigrate {
			if err := database.NewMigrationService(dbConfig, logger).Up(); err != nil {
				logger.Fatal(ctx, "[INGESTER_ERROR] Failed to apply migrations", logging.Fields{}, err)
			}
		}

		db, err := database.Open(dbConfig, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()
		repo = repository.NewRecordRepository(db, logger, metricsCollector)
	}

	ingestionService := services.NewIngestionService(repo, logger, metricsCollector, services.IngestionOptions{
		HTTPTimeout:      cfg.Ingestion.HTTPTimeout,
		FailureThreshold: cfg.Ingestion.FailureThreshold,
		OpenTimeout:      cfg.Ingestion.OpenTimeout,
	})

	var result *services.IngestionResult
	if *path != "" {
		f, openErr := os.Open(*path)
		if openErr != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Failed to open dataset file", logging.Fields{"file": *path}, openErr)
		}
		defer f.Close()
		result, err = ingestionService.IngestReader(ctx, f)
	} else {
		result, err = ingestionService.IngestURL(ctx, source)
	}
	if err != nil {
		logger.Error(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{"source": source}, err)
		if result != nil {
			printSummary(result, dryRec)
		}
		os.Exit(1)
	}

	printSummary(result, dryRec)

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"rows_read":        result.RowsRead,
		"rows_kept":        result.RowsKept,
		"records_saved":    result.RecordsSaved,
		"duration_seconds": result.Duration.Seconds(),
	})
}

func printSummary(result *services.IngestionResult, dry *dryRunRepository) {
	fmt.Println(strings.Repeat("=", 80))
	if dry != nil {
		fmt.Println("DRY RUN COMPLETE")
	} else {
		fmt.Println("INGESTION COMPLETE")
	}
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Rows Read:      %d\n", result.RowsRead)
	fmt.Printf("Rows Kept:      %d\n", result.RowsKept)
	fmt.Printf("Records Saved:  %d\n", result.RecordsSaved)
	fmt.Printf("Duration:       %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second: %.2f\n", float64(result.RecordsSaved)/secs)
	}
	if dry != nil {
		fmt.Printf("Countries:      %d\n", len(dry.countries))
		fmt.Printf("Continents:     %d\n", len(dry.continents))
	}
}
