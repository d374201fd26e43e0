package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/yegors/flight-control/internal/config"
	"github.com/yegors/flight-control/internal/flights"
	"github.com/yegors/flight-control/pkg/logger"
)

// FlightService is the part of the flight service used by the HTTP surface
type FlightService interface {
	Views() flights.Views
	Status() flights.DashboardStatus
	MarkerCount() int
	RunCycle(ctx context.Context) (flights.CycleResult, error)
}

// ClientCounter reports connected dashboard pages
type ClientCounter interface {
	ClientCount() int
}

// Handler contains the API handlers
type Handler struct {
	flightService FlightService
	wsServer      ClientCounter
	config        *config.Config
	logger        *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(flightService FlightService, wsServer ClientCounter, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		flightService: flightService,
		wsServer:      wsServer,
		config:        config,
		logger:        logger.Named("api-handler"),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	st := h.flightService.Status()

	status := "ok"
	switch {
	case st.LastSuccess == nil:
		status = "starting"
	case st.Stale:
		status = "stale"
	case st.ConsecutiveFailures > 0:
		status = "degraded"
	}

	response := map[string]interface{}{
		"status":               status,
		"stale":                st.Stale,
		"consecutive_failures": st.ConsecutiveFailures,
		"last_success":         st.LastSuccess,
		"last_attempt":         st.LastAttempt,
		"last_error":           st.LastError,
		"last_cycle":           st.LastCycle,
		"marker_count":         h.flightService.MarkerCount(),
	}
	if h.wsServer != nil {
		response["ws_clients"] = h.wsServer.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetViews returns the active and upcoming lists from the last applied cycle
func (h *Handler) GetViews(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.flightService.Views())
}

// PostRefresh runs a refresh cycle immediately
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, err := h.flightService.RunCycle(r.Context())
	if err != nil {
		var fetchErr *flights.FetchError
		switch {
		case errors.Is(err, flights.ErrCycleInProgress):
			WriteJSON(w, http.StatusConflict, map[string]interface{}{"error": err.Error()})
		case errors.Is(err, flights.ErrStopped):
			WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": err.Error()})
		case errors.As(err, &fetchErr):
			h.logger.Warn("Manual refresh failed to fetch snapshot", logger.Error(err))
			WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":       err.Error(),
				"endpoint":    fetchErr.Endpoint,
				"status_code": fetchErr.StatusCode,
			})
		default:
			h.logger.Error("Manual refresh failed", logger.Error(err))
			WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		}
		return
	}

	h.logger.Info("Manual refresh applied",
		logger.Uint64("cycle", result.Cycle),
		logger.Duration("duration", time.Since(start)))

	WriteJSON(w, http.StatusOK, result)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	// Create a sanitized config with only public values
	publicConfig := map[string]interface{}{
		"backend": map[string]interface{}{
			"fetch_interval_seconds": h.config.Backend.FetchIntervalSecs,
			"stale_after_failures":   h.config.Backend.StaleAfterFailures,
		},
		"display": map[string]interface{}{
			"locale":      h.config.Display.Locale,
			"timezone":    h.config.Display.Timezone,
			"time_format": h.config.Display.TimeFormat,
		},
		"nats": map[string]interface{}{
			"enabled": h.config.NATS.Enabled,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
