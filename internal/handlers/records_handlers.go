package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"climate-records/internal/models"
	"climate-records/internal/query"
	"climate-records/internal/services"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

// maxBodyBytes bounds create and update request bodies.
const maxBodyBytes = 1 << 20

// RecordHandler handles the /records API endpoints
type RecordHandler struct {
	records *services.RecordService
	stats   *services.StatisticsService
	ingest  *services.IngestionService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(
	records *services.RecordService,
	stats *services.StatisticsService,
	ingest *services.IngestionService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RecordHandler {
	return &RecordHandler{
		records: records,
		stats:   stats,
		ingest:  ingest,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// params merges the query string with the path variables. Path variables win.
func params(r *http.Request) query.Values {
	out := query.Values{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	for k, v := range mux.Vars(r) {
		out[k] = v
	}
	return out
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return &models.ValidationError{Field: "body", Message: "The request body has an invalid entry."}
}

// resourceURL builds an absolute URL on the host the request was addressed to.
func resourceURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}

// CreateGeneralRecord handles POST /records/general
func (h *RecordHandler) CreateGeneralRecord(w http.ResponseWriter, r *http.Request) {
	var input models.GeneralRecordInput
	if err := decodeBody(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.records.CreateGeneralRecord(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", resourceURL(r,
		fmt.Sprintf("/records/%s/%d/general", url.PathEscape(rec.Country), rec.Year)))
	h.writeOne(w, r, http.StatusCreated, rec)
}

// GetGeneralRecord handles GET /records/{country}/{year}/general
func (h *RecordHandler) GetGeneralRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.GetGeneralRecord(r.Context(), params(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOne(w, r, http.StatusOK, rec)
}

// UpdateGeneralRecord handles PUT /records/{country}/{year}/general
func (h *RecordHandler) UpdateGeneralRecord(w http.ResponseWriter, r *http.Request) {
	var input models.GeneralRecordUpdate
	if err := decodeBody(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.records.UpdateGeneralRecord(r.Context(), params(r), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOne(w, r, http.StatusOK, rec)
}

// DeleteGeneralRecord handles DELETE /records/{country}/{year}/general
func (h *RecordHandler) DeleteGeneralRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.records.DeleteGeneralRecord(r.Context(), params(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGeneralRecords handles GET /records/{country}/general
func (h *RecordHandler) ListGeneralRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListGeneralRecords(r.Context(), params(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(h, w, r, records)
}

// ListEmissionRecords handles GET /records/{country}/emission
func (h *RecordHandler) ListEmissionRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListEmissionRecords(r.Context(), params(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(h, w, r, records)
}

// ListTemperatureRecords handles GET /records/{continent}/temp-change
func (h *RecordHandler) ListTemperatureRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListTemperatureRecords(r.Context(), params(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(h, w, r, records)
}

// ListEnergyRecords handles GET /records/{year}/energy
func (h *RecordHandler) ListEnergyRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListEnergyRecords(r.Context(), params(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(h, w, r, records)
}

// RankCountries handles GET /records/countries
func (h *RecordHandler) RankCountries(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.stats.RankCountries(r.Context(), params(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(h, w, r, rankings)
}

// IngestRecords handles PUT /records?emissions_csv_url=...
func (h *RecordHandler) IngestRecords(w http.ResponseWriter, r *http.Request) {
	result, err := h.ingest.IngestURL(r.Context(), r.URL.Query().Get("emissions_csv_url"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", resourceURL(r, "/records/"))
	h.writeOne(w, r, http.StatusCreated, &models.Message{
		Message: fmt.Sprintf("Successfully created %d records", result.RecordsSaved),
	})
}

// HealthCheck handles GET /health
func (h *RecordHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.records.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK] Database unreachable", logging.Fields{}, err)
		status["status"] = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	writeJSON(w, http.StatusOK, status)
}

// RegisterRoutes registers all record API routes. Fixed paths are registered before the
// patterns whose first segment is a variable.
func (h *RecordHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/records", h.IngestRecords).Methods(http.MethodPut)
	router.HandleFunc("/records/countries", h.RankCountries).Methods(http.MethodGet)
	router.HandleFunc("/records/general", h.CreateGeneralRecord).Methods(http.MethodPost)

	router.HandleFunc("/records/{country}/general", h.ListGeneralRecords).Methods(http.MethodGet)
	router.HandleFunc("/records/{country}/emission", h.ListEmissionRecords).Methods(http.MethodGet)
	router.HandleFunc("/records/{continent}/temp-change", h.ListTemperatureRecords).Methods(http.MethodGet)
	router.HandleFunc("/records/{year}/energy", h.ListEnergyRecords).Methods(http.MethodGet)

	router.HandleFunc("/records/{country}/{year}/general", h.GetGeneralRecord).Methods(http.MethodGet)
	router.HandleFunc("/records/{country}/{year}/general", h.UpdateGeneralRecord).Methods(http.MethodPut)
	router.HandleFunc("/records/{country}/{year}/general", h.DeleteGeneralRecord).Methods(http.MethodDelete)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}
