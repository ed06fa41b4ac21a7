package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"climate-records/internal/models"
	"climate-records/pkg/logging"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCSV  = "text/csv"

	// ResultMessageHeader repeats the empty-list message, since clients drop 204 bodies.
	ResultMessageHeader = "X-Result-Message"

	emptyListMessage = "List empty; no results"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string `json:"error-message"`
}

// wantsCSV reports whether the Accept header asks for text/csv.
func wantsCSV(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == contentTypeCSV {
			return true
		}
	}
	return false
}

func encodeCSV[T models.CSVRecord](items []T) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if len(items) > 0 {
		if err := cw.Write(items[0].CSVHeader()); err != nil {
			return nil, err
		}
	}
	for _, item := range items {
		if err := cw.Write(item.CSVRow()); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encode renders items as CSV or, when asCSV is false, renders body as JSON.
func encode[T models.CSVRecord](asCSV bool, body interface{}, items []T) ([]byte, string, error) {
	if asCSV {
		data, err := encodeCSV(items)
		if err != nil {
			return nil, "", &models.SerializationError{Format: "csv", Err: err}
		}
		return data, contentTypeCSV, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", &models.SerializationError{Format: "json", Err: err}
	}
	return data, contentTypeJSON, nil
}

// writeOne sends a single record in the representation the client asked for.
func (h *RecordHandler) writeOne(w http.ResponseWriter, r *http.Request, status int, rec models.CSVRecord) {
	data, contentType, err := encode(wantsCSV(r), rec, []models.CSVRecord{rec})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeBody(w, status, contentType, data)
}

// writeList sends a collection, or 204 with the empty-list message when there is nothing to send.
func writeList[T models.CSVRecord](h *RecordHandler, w http.ResponseWriter, r *http.Request, items []T) {
	if len(items) == 0 {
		w.Header().Set(ResultMessageHeader, emptyListMessage)
		data, _ := json.Marshal(models.Message{Message: emptyListMessage})
		writeBody(w, http.StatusNoContent, contentTypeJSON, data)
		return
	}

	data, contentType, err := encode(wantsCSV(r), items, items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeBody(w, http.StatusOK, contentType, data)
}

// writeBody writes the payload; net/http discards it for 204.
func writeBody(w http.ResponseWriter, status int, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if status != http.StatusNoContent {
		_, _ = w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error-message":"Internal server error"}`)
	}
	writeBody(w, status, contentTypeJSON, data)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// classify maps an error to its status, client message and metric label.
func classify(err error) (int, string, string) {
	var (
		verrs      models.ValidationErrors
		verr       *models.ValidationError
		badRef     *models.InvalidReferenceError
		noCountry  *models.CountryNotFoundError
		notFound   *models.NotFoundError
		conflict   *models.ConflictError
		upstream   *models.UpstreamFetchError
		serialize  *models.SerializationError
		ingestRow  *models.IngestRowError
		maxBodyErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &ingestRow):
		status, message, kind := classify(ingestRow.Err)
		if status < http.StatusInternalServerError {
			message = fmt.Sprintf("Row %d: %s", ingestRow.Row, message)
		}
		return status, message, "ingest_" + kind
	case errors.As(err, &verrs):
		return http.StatusBadRequest, verrs.Error(), "validation"
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message, "validation"
	case errors.As(err, &badRef):
		return http.StatusBadRequest, "The request has an invalid entry: " + badRef.Value, "invalid_reference"
	case errors.As(err, &noCountry):
		return http.StatusNotFound, "Country not found", "country_not_found"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "Resource not found", "not_found"
	case errors.As(err, &conflict):
		return http.StatusConflict, "Record with the same name already exists", "conflict"
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, "Invalid response", "upstream"
	case errors.As(err, &serialize):
		return http.StatusInternalServerError, "Server error; no results, try again later", "serialization"
	case errors.As(err, &maxBodyErr):
		return http.StatusRequestEntityTooLarge, "Request body too large", "validation"
	default:
		return http.StatusInternalServerError, "Internal server error", "internal_error"
	}
}

// writeError is the single error-to-response mapper. Server-side failures are logged with
// their cause; the client only sees the generic message.
func (h *RecordHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, kind := classify(err)
	endpoint := routeTemplate(r)

	fields := logging.Fields{
		"endpoint": endpoint,
		"method":   r.Method,
		"status":   status,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", fields, err)
	} else {
		fields["reason"] = err.Error()
		h.logger.Debug(r.Context(), "[API_REJECTED] Request rejected", fields)
	}

	h.metrics.RecordAPIError(kind, endpoint)
	writeErrorMessage(w, status, message)
}

// routeTemplate is the matched mux path template, used as a low-cardinality metric label.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
