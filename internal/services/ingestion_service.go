package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"climate-records/internal/models"
	"climate-records/internal/repository"
	"climate-records/internal/validation"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

// progressEvery is how many kept rows pass between progress log entries.
const progressEvery = 1000

// IngestionService loads the emissions dataset CSV into every record table
type IngestionService struct {
	repo    repository.RecordRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// IngestionOptions tunes the dataset fetch
type IngestionOptions struct {
	HTTPTimeout      time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	RowsRead     int
	RowsKept     int
	RecordsSaved int
	Duration     time.Duration
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.RecordRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts IngestionOptions) *IngestionService {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 3
	}

	s := &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		client:  &http.Client{Timeout: opts.HTTPTimeout},
	}

	s.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "dataset-fetch",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "[INGEST_BREAKER] Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return s
}

// IngestURL downloads the CSV at url and ingests it.
func (s *IngestionService) IngestURL(ctx context.Context, url string) (*IngestionResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &models.ValidationError{Field: "emissions_csv_url", Message: "URL not provided"}
	}

	s.logger.Info(ctx, "[INGEST_FETCH] Downloading dataset", logging.Fields{
		"url":   url,
		"stage": "FETCH",
	})

	body, err := s.breaker.Execute(func() ([]byte, error) {
		return s.fetch(ctx, url)
	})
	if err != nil {
		s.metrics.RecordIngestionError("fetch_error")
		var upstream *models.UpstreamFetchError
		if errors.As(err, &upstream) {
			return nil, upstream
		}
		return nil, &models.UpstreamFetchError{URL: url, Err: err}
	}

	return s.IngestReader(ctx, bytes.NewReader(body))
}

func (s *IngestionService) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.UpstreamFetchError{URL: url, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.UpstreamFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.UpstreamFetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.UpstreamFetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}

// IngestReader parses CSV from r by header name and upserts every kept row. The first row that
// fails to parse, validate or save stops the run; rows saved before it stay saved.
func (s *IngestionService) IngestReader(ctx context.Context, r io.Reader) (*IngestionResult, error) {
	start := time.Now()
	result := &IngestionResult{}

	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		s.metrics.RecordIngestionError("header_error")
		return nil, &models.ValidationError{Field: "csv", Message: fmt.Sprintf("unreadable CSV header: %v", err)}
	}

	columns := make(map[string]int, len(models.FullRecordColumns))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"country", "year"} {
		if _, ok := columns[required]; !ok {
			s.metrics.RecordIngestionError("header_error")
			return nil, &models.ValidationError{Field: "csv", Message: "CSV is missing column " + required}
		}
	}

	s.logger.Info(ctx, "[INGEST_START] Starting dataset ingestion", logging.Fields{
		"columns": len(header),
		"stage":   "INITIALIZATION",
	})

	defer func() {
		result.Duration = time.Since(start)
		s.metrics.IngestionDuration.Observe(result.Duration.Seconds())
		s.metrics.RecordIngestionRows("read", result.RowsRead)
		s.metrics.RecordIngestionRows("kept", result.RowsKept)
		s.metrics.RecordIngestionRows("saved", result.RecordsSaved)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.metrics.RecordIngestionError("parse_error")
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return result, &models.IngestRowError{Row: parseErr.StartLine, Err: err}
			}
			return result, &models.IngestRowError{Row: result.RowsRead + 2, Err: err}
		}
		line, _ := reader.FieldPos(0)
		result.RowsRead++

		raw := make(models.RawRecord, len(models.FullRecordColumns))
		for _, name := range models.FullRecordColumns {
			if i, ok := columns[name]; ok && i < len(fields) {
				raw[name] = fields[i]
			}
		}
		if !raw.Keep() {
			continue
		}
		result.RowsKept++

		if err := s.saveRow(ctx, raw); err != nil {
			s.logger.Error(ctx, "[INGEST_ROW_ERROR] Row rejected, stopping ingestion", logging.Fields{
				"row":     line,
				"country": raw["country"],
				"year":    raw["year"],
				"saved":   result.RecordsSaved,
			}, err)
			return result, &models.IngestRowError{Row: line, Err: err}
		}
		result.RecordsSaved++

		if result.RowsKept%progressEvery == 0 {
			s.logger.Info(ctx, "[INGEST_PROGRESS] Processing records", logging.Fields{
				"rows_read": result.RowsRead,
				"saved":     result.RecordsSaved,
				"stage":     "PROCESSING",
			})
		}
	}

	s.logger.Info(ctx, "[INGEST_COMPLETE] Dataset ingestion completed", logging.Fields{
		"rows_read":        result.RowsRead,
		"rows_kept":        result.RowsKept,
		"records_saved":    result.RecordsSaved,
		"duration_seconds": time.Since(start).Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) saveRow(ctx context.Context, raw models.RawRecord) error {
	rec, err := raw.ToFullRecord()
	if err != nil {
		s.metrics.RecordIngestionError("conversion_error")
		return err
	}
	if err := validation.ValidateStruct(rec); err != nil {
		s.metrics.RecordIngestionError("validation_error")
		return err
	}
	if err := s.repo.SaveFullRecord(ctx, rec); err != nil {
		s.metrics.RecordIngestionError("save_error")
		return err
	}
	return nil
}
