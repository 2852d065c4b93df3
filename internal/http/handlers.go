package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-screen/internal/client"
	"github.com/kjstillabower/weather-screen/internal/lifecycle"
	"github.com/kjstillabower/weather-screen/internal/models"
	"github.com/kjstillabower/weather-screen/internal/render"
	"github.com/kjstillabower/weather-screen/internal/screen"
	"github.com/kjstillabower/weather-screen/internal/validation"
)

// Screen is the part of screen.Screen the handlers drive.
type Screen interface {
	State() screen.State
	Search(ctx context.Context, text string) error
	Mount(ctx context.Context)
	LoadLastWeather(ctx context.Context)
}

// HealthConfig holds dependencies for the health handler.
type HealthConfig struct {
	// StorePing, when set, is called to check store reachability.
	StorePing func() error
	StartTime time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	screen        Screen
	alerts        *screen.AlertLog
	healthConfig  *HealthConfig
	logger        *zap.Logger
	cityMaxLength int
	now           func() time.Time

	// flowMu serializes the mutating routes.
	flowMu sync.Mutex

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. alerts may be nil when alerts are not recorded.
func NewHandler(s Screen, alerts *screen.AlertLog, healthConfig *HealthConfig, logger *zap.Logger, cityMaxLength int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		screen:        s,
		alerts:        alerts,
		healthConfig:  healthConfig,
		logger:        logger,
		cityMaxLength: cityMaxLength,
		now:           time.Now,
	}
}

// screenResponse is the body of every /screen route.
type screenResponse struct {
	State  screen.State   `json:"state"`
	Phase  screen.Phase   `json:"phase"`
	View   string         `json:"view"`
	Alerts []screen.Alert `json:"alerts"`
}

func (h *Handler) screenBody() screenResponse {
	st := h.screen.State()
	alerts := []screen.Alert{}
	if h.alerts != nil {
		alerts = h.alerts.Recent()
	}
	return screenResponse{
		State:  st,
		Phase:  st.Phase(),
		View:   render.Screen(st, h.now()),
		Alerts: alerts,
	}
}

// GetScreen handles GET /screen.
func (h *Handler) GetScreen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.screenBody())
}

// PostSearch handles POST /screen/search with body {"city": "..."}.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		City string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with a city field")
		return
	}
	city, err := validation.ValidateCity(body.City, h.cityMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	h.flowMu.Lock()
	err = h.screen.Search(r.Context(), city)
	h.flowMu.Unlock()

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.screenBody())
	case errors.Is(err, client.ErrStatus) && !errors.Is(err, models.ErrParse):
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", screen.MsgCityNotFound)
	default:
		writeServiceError(w, r, err)
	}
}

// PostRefresh handles POST /screen/refresh by re-running the startup flow.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	h.flowMu.Lock()
	h.screen.Mount(r.Context())
	h.flowMu.Unlock()
	writeJSON(w, http.StatusOK, h.screenBody())
}

// PostFallback handles POST /screen/fallback by showing the last persisted record.
func (h *Handler) PostFallback(w http.ResponseWriter, r *http.Request) {
	h.flowMu.Lock()
	h.screen.LoadLastWeather(r.Context())
	h.flowMu.Unlock()
	writeJSON(w, http.StatusOK, h.screenBody())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-screen",
		"version":   "dev",
		"checks":    result.checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptimeSeconds"] = int64(h.now().Sub(h.healthConfig.StartTime).Seconds())
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates, in order: shutting-down, starting, store reachability, healthy.
func (h *Handler) computeHealthStatus() healthResult {
	checks := make(map[string]string)
	switch lifecycle.Current() {
	case lifecycle.PhaseShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	case lifecycle.PhaseStarting:
		return healthResult{"starting", http.StatusServiceUnavailable, "startup_flow_pending", checks}
	}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if err := h.healthConfig.StorePing(); err != nil {
			checks["store"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable", checks}
		}
		checks["store"] = "healthy"
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}}; requestId is the correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

// writeServiceError writes 503 for upstream and parse failures; the cause is logged at DEBUG.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", screen.MsgProblemFetching)
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}
