package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"climate-api/internal/config"
	"climate-api/internal/models"
	"climate-api/internal/services"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

const climateEndpoint = "/api/climate"

// ClimateHandler handles climate API endpoints
type ClimateHandler struct {
	service    *services.ClimateService
	extractKey services.KeyExtractor
	keyMode    string
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewClimateHandler creates a new climate handler. keyMode is one of
// config.KeyModePrefix or config.KeyModeCharset.
func NewClimateHandler(
	service *services.ClimateService,
	keyMode string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ClimateHandler {
	extract := services.ExtractKeyPrefix
	if keyMode == config.KeyModeCharset {
		extract = services.ExtractKeyCharset
	}

	return &ClimateHandler{
		service:    service,
		extractKey: extract,
		keyMode:    keyMode,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// GetAverageTemperature handles GET /api/climate/{country}
func (h *ClimateHandler) GetAverageTemperature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(climateEndpoint).Observe(time.Since(startTime).Seconds())
	}()

	country := h.extractKey(r.URL.Path)
	if country == "" && h.keyMode == config.KeyModeCharset {
		// Charset mode sends no response at all: no status line and no body.
		h.logger.Debug(ctx, "[API_EMPTY_KEY] Empty country, closing connection", logging.Fields{
			"path": r.URL.Path,
		})
		h.metrics.RecordAPIRequest(climateEndpoint, r.Method, "empty")
		dropConnection(w)
		return
	}

	result, err := h.service.AverageTemperature(ctx, country)
	if err != nil {
		h.handleAggregateError(w, r, country, err)
		return
	}

	h.logger.Debug(ctx, "[API_AVERAGE] Average temperature computed", logging.Fields{
		"country": country,
		"count":   result.Count,
		"skipped": result.Skipped,
	})

	h.metrics.RecordAPIRequest(climateEndpoint, r.Method, "200")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, services.FormatMean(result.Mean))
}

// dropConnection closes the client connection without writing a response.
// Writers that cannot be hijacked fall back to an empty 200.
func dropConnection(w http.ResponseWriter) {
	conn, _, err := http.NewResponseController(w).Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

func (h *ClimateHandler) handleAggregateError(w http.ResponseWriter, r *http.Request, country string, err error) {
	var notFound *models.NotFoundError

	switch {
	case errors.Is(err, models.ErrEmptyKey):
		h.metrics.RecordAPIError("empty_key", climateEndpoint)
		h.sendError(w, r, "country name is required: GET /api/climate/{country}", http.StatusBadRequest)

	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", climateEndpoint)
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)

	case services.IsParseError(err):
		h.logger.Error(r.Context(), "[API_PARSE_ERROR] No parsable temperatures for country", logging.Fields{
			"country": country,
		}, err)
		h.metrics.RecordAPIError("parse_error", climateEndpoint)
		h.sendError(w, r, err.Error(), http.StatusInternalServerError)

	default:
		h.logger.Error(r.Context(), "[API_AGGREGATE_ERROR] Aggregation failed", logging.Fields{
			"country": country,
		}, err)
		h.metrics.RecordAPIError("internal_error", climateEndpoint)
		h.sendError(w, r, "failed to compute average temperature", http.StatusInternalServerError)
	}
}

// GetCountries handles GET /api/countries
func (h *ClimateHandler) GetCountries(w http.ResponseWriter, r *http.Request) {
	countries := h.service.Countries(r.Context())

	h.metrics.RecordAPIRequest("/api/countries", r.Method, "200")
	h.sendJSON(w, map[string]interface{}{
		"data":  countries,
		"total": len(countries),
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ClimateHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"records":   h.service.RecordCount(),
	}

	h.logger.Debug(r.Context(), "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

func (h *ClimateHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *ClimateHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(climateEndpoint, r.Method, strconv.Itoa(statusCode))

	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// RegisterRoutes registers the climate API routes. In charset mode every
// other GET falls through to the average handler, so routes that must win
// over it (such as /metrics) have to be registered before calling this.
func (h *ClimateHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestIDMiddleware(h.logger))

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/countries", h.GetCountries).Methods(http.MethodGet)
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/api/docs", SwaggerUI).Methods(http.MethodGet)
	router.PathPrefix(services.ClimatePathPrefix).HandlerFunc(h.GetAverageTemperature).Methods(http.MethodGet)

	if h.keyMode == config.KeyModeCharset {
		router.PathPrefix("/").HandlerFunc(h.GetAverageTemperature).Methods(http.MethodGet)
	}
}
