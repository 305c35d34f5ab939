package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ejordan/importrack/internal/jobs"
	"github.com/ejordan/importrack/internal/services"
	"github.com/sirupsen/logrus"
)

// StatsHandler serves the fleet KPI aggregation and the manual alert scan.
type StatsHandler struct {
	Service    *services.ShipmentService
	Dispatcher *jobs.AlertDispatcher
}

// NewStatsHandler creates a new instance of StatsHandler.
func NewStatsHandler(service *services.ShipmentService, dispatcher *jobs.AlertDispatcher) *StatsHandler {
	return &StatsHandler{Service: service, Dispatcher: dispatcher}
}

// GetStatsHandler returns fleet KPIs, optionally restricted to shipments
// whose warehouse ETA falls between the from and to query parameters.
func (h *StatsHandler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	stats, err := h.Service.Stats(r.Context(), from, to)
	if err != nil {
		logrus.WithError(err).Error("Failed to compute stats")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// TriggerScanHandler runs one alert scan synchronously and returns the
// report. Intended for operations, not for the regular UI flow.
func (h *StatsHandler) TriggerScanHandler(w http.ResponseWriter, r *http.Request) {
	rep := h.Dispatcher.Scan(context.Background())

	logrus.WithFields(logrus.Fields{
		"sent":             rep.Sent,
		"send_failures":    rep.SendFailures,
		"persist_failures": rep.PersistFailures,
	}).Info("Manual alert scan completed")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"evaluated":       rep.Evaluated,
		"candidates":      rep.Candidates,
		"sent":            rep.Sent,
		"suppressed":      rep.Suppressed,
		"sendFailures":    rep.SendFailures,
		"persistFailures": rep.PersistFailures,
	})
}
