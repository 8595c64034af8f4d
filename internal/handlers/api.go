package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"salesbot/internal/charts"
	"salesbot/internal/errors"
	"salesbot/internal/models"
	"salesbot/internal/observability"
	"salesbot/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type ChartRenderer interface {
	Render(ctx context.Context, kind models.ChartKind, period string) (*charts.Chart, error)
}

type APIHandlers struct {
	analytics *services.Analytics
	charts    ChartRenderer
	logger    *slog.Logger
	version   string
}

func NewAPIHandlers(analytics *services.Analytics, renderer ChartRenderer, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		charts:    renderer,
		logger:    logger,
		version:   "dev",
	}
}

// WithVersion sets the build version reported by the health endpoint.
func (h *APIHandlers) WithVersion(version string) *APIHandlers {
	h.version = version
	return h
}

// HandleMetrics returns the revenue, AOV and ARPU summary of the day or month
// in the path, with changes against the previous period.
func (h *APIHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.PathValue("period"))
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	headers := map[string]string{
		"Cache-Control": cacheMaxAge,
	}

	errors.WriteSuccessWithHeaders(w, summary, headers)
}

func (h *APIHandlers) HandleMonthlyRevenue(w http.ResponseWriter, r *http.Request) {

	data := h.analytics.MonthlyRevenue()

	headers := map[string]string{
		"Cache-Control": cacheMaxAge,
	}

	errors.WriteSuccessWithHeaders(w, data, headers)
}

// HandleChart streams a rendered chart as PNG. Month-scoped charts take the
// month from the period query parameter.
func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	kind := models.ChartKind(r.PathValue("kind"))
	if !kind.Valid() {
		errors.WriteError(w, h.logger, errors.NotFound(fmt.Sprintf("unknown chart %q", kind)), requestID)
		return
	}

	chart, err := h.charts.Render(r.Context(), kind, r.URL.Query().Get("period"))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(chart.PNG)))
	w.Header().Set("Cache-Control", cacheMaxAge)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(chart.PNG); err != nil {
		h.logger.Warn("chart write failed", "kind", kind, "request_id", requestID, "error", err)
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.analytics.Stats()

	errors.WriteSuccess(w, stats)
}
