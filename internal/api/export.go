package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gocarina/gocsv"
	"github.com/yegors/flight-control/internal/flights"
	"github.com/yegors/flight-control/pkg/logger"
)

// GetViewCSV exports the active or upcoming list as CSV
func (h *Handler) GetViewCSV(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")

	views := h.flightService.Views()
	var entries []flights.ListEntry
	switch list {
	case "active":
		entries = views.Active
	case "upcoming":
		entries = views.Upcoming
	default:
		WriteJSON(w, http.StatusNotFound, map[string]interface{}{"error": fmt.Sprintf("unknown list %q", list)})
		return
	}
	if entries == nil {
		entries = []flights.ListEntry{}
	}

	data, err := gocsv.MarshalBytes(&entries)
	if err != nil {
		h.logger.Error("Failed to export list", logger.String("list", list), logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-cycle-%d.csv"`, list, views.Cycle))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
