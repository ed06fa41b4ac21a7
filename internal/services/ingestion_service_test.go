package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climate-records/internal/models"
	"climate-records/internal/query"
	"climate-records/internal/repository"
	"climate-records/pkg/database/dbtest"
)

const datasetCSV = `iso_code,country,year,co2,population,gdp,share_of_temperature_change_from_ghg,unused
FRA,France,1990,400,56000000,1e12,1.0,x
OWID_WRL,World,1990,22000,5300000000,,100,x
,Europe,1990,,,,9.0,x
,High-income countries,1990,,,,30,x
FRA,France,2005,380,,,,x
DEU,Germany,1995,900,,,2.0,x
`

type ingestFixture struct {
	env     *dbtest.Env
	records *RecordService
	ingest  *IngestionService
}

func newIngestFixture(t *testing.T, opts IngestionOptions) *ingestFixture {
	t.Helper()
	env := dbtest.New(t)
	repo := repository.NewRecordRepository(env.DB, env.Logger, env.Metrics)
	return &ingestFixture{
		env:     env,
		records: NewRecordService(repo, env.Logger, env.Metrics),
		ingest:  NewIngestionService(repo, env.Logger, env.Metrics, opts),
	}
}

func csvServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestIngestURL(t *testing.T) {
	f := newIngestFixture(t, IngestionOptions{HTTPTimeout: 5 * time.Second})
	srv, _ := csvServer(t, http.StatusOK, datasetCSV)
	ctx := context.Background()

	result, err := f.ingest.IngestURL(ctx, srv.URL+"/owid-co2-data.csv")
	require.NoError(t, err)
	assert.Equal(t, 6, result.RowsRead)
	assert.Equal(t, 3, result.RowsKept)
	assert.Equal(t, 3, result.RecordsSaved)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.env.Metrics.IngestionRowsTotal.WithLabelValues("saved")))

	name, err := f.records.ResolveCountry(ctx, query.Values{"country": "DEU"})
	require.NoError(t, err)
	assert.Equal(t, "Germany", name)

	var notFound *models.CountryNotFoundError
	_, err = f.records.ResolveCountry(ctx, query.Values{"country": "World"})
	assert.True(t, errors.As(err, &notFound), "aggregate regions are skipped")

	general, err := f.records.GetGeneralRecord(ctx, query.Values{"country": "France", "year": "1990"})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000_000), *general.GDP)

	temps, err := f.records.ListTemperatureRecords(ctx, query.Values{"continent": "Europe"})
	require.NoError(t, err)
	require.Len(t, temps, 1)
	assert.Equal(t, 9.0, *temps[0].ShareOfTemperatureChangeFromGHG)

	again, err := f.ingest.IngestURL(ctx, srv.URL)
	require.NoError(t, err, "re-ingesting the same rows upserts")
	assert.Equal(t, 3, again.RecordsSaved)
}

func TestIngestURLRequiresURL(t *testing.T) {
	f := newIngestFixture(t, IngestionOptions{})

	var verr *models.ValidationError
	_, err := f.ingest.IngestURL(context.Background(), "  ")
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "URL not provided", verr.Message)
}

func TestIngestURLUpstreamFailure(t *testing.T) {
	f := newIngestFixture(t, IngestionOptions{HTTPTimeout: 5 * time.Second})
	srv, _ := csvServer(t, http.StatusNotFound, "missing")

	var upstream *models.UpstreamFetchError
	_, err := f.ingest.IngestURL(context.Background(), srv.URL)
	require.True(t, errors.As(err, &upstream), "got %v", err)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
	assert.Equal(t, srv.URL, upstream.URL)
}

func TestIngestURLBreakerOpens(t *testing.T) {
	f := newIngestFixture(t, IngestionOptions{
		HTTPTimeout:      5 * time.Second,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	})
	srv, hits := csvServer(t, http.StatusBadGateway, "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.ingest.IngestURL(ctx, srv.URL)
		var upstream *models.UpstreamFetchError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	}

	_, err := f.ingest.IngestURL(ctx, srv.URL)
	var upstream *models.UpstreamFetchError
	require.True(t, errors.As(err, &upstream), "got %v", err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "an open breaker does not reach the source")
}

func TestIngestReaderStopsAtFirstBadRow(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantRow int
		saved   int
	}{
		{
			name:    "malformed number",
			csv:     "iso_code,country,year,co2\nFRA,France,1990,400\nFRA,France,1991,lots\nDEU,Germany,1991,900\n",
			wantRow: 3,
			saved:   1,
		},
		{
			name:    "unknown iso code",
			csv:     "iso_code,country,year,co2\nXXX,Nowhere,1990,1\nFRA,France,1991,400\n",
			wantRow: 2,
			saved:   0,
		},
		{
			name:    "ragged row",
			csv:     "iso_code,country,year,co2\nFRA,France,1990,400\nFRA,France\n",
			wantRow: 3,
			saved:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, IngestionOptions{})

			result, err := f.ingest.IngestReader(context.Background(), strings.NewReader(tt.csv))
			var rowErr *models.IngestRowError
			require.True(t, errors.As(err, &rowErr), "got %v", err)
			assert.Equal(t, tt.wantRow, rowErr.Row)
			require.NotNil(t, result)
			assert.Equal(t, tt.saved, result.RecordsSaved)
		})
	}
}

func TestIngestReaderHeader(t *testing.T) {
	f := newIngestFixture(t, IngestionOptions{})

	var verr *models.ValidationError
	_, err := f.ingest.IngestReader(context.Background(), strings.NewReader("iso_code,country,co2\nFRA,France,1\n"))
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Contains(t, verr.Message, "year")

	_, err = f.ingest.IngestReader(context.Background(), strings.NewReader(""))
	assert.True(t, errors.As(err, &verr), "got %v", err)
}

func TestIngestReaderHonoursCancellation(t *testing.T) {
	f := newIngestFixture(t, IngestionOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ingest.IngestReader(ctx, strings.NewReader(datasetCSV))
	assert.ErrorIs(t, err, context.Canceled)
}
