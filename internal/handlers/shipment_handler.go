package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ejordan/importrack/internal/models"
	"github.com/ejordan/importrack/internal/schedule"
	"github.com/ejordan/importrack/internal/services"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ShipmentHandler handles HTTP requests related to shipments.
type ShipmentHandler struct {
	Service *services.ShipmentService
}

// NewShipmentHandler creates a new instance of ShipmentHandler.
func NewShipmentHandler(service *services.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{Service: service}
}

// CreateShipmentHandler handles the creation of a new shipment. The
// milestone schedule is generated server-side from the reference dates;
// any milestones in the payload are ignored.
func (h *ShipmentHandler) CreateShipmentHandler(w http.ResponseWriter, r *http.Request) {
	var shipment models.Shipment
	if err := json.NewDecoder(r.Body).Decode(&shipment); err != nil {
		logrus.WithError(err).Warn("Invalid request payload during shipment creation")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	created, err := h.Service.CreateShipment(r.Context(), &shipment)
	if err != nil {
		writeServiceError(w, err, "Failed to create shipment")
		return
	}

	logrus.WithField("shipment_id", created.ID).Info("Shipment successfully created")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// GetShipmentsHandler returns all shipments with live milestone statuses.
func (h *ShipmentHandler) GetShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	shipments, err := h.Service.GetAllShipments(r.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch shipments")
		http.Error(w, "Failed to fetch shipments", http.StatusInternalServerError)
		return
	}
	if shipments == nil {
		shipments = []models.Shipment{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shipments)
}

// GetShipmentHandler returns a single shipment by ID.
func (h *ShipmentHandler) GetShipmentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	shipment, err := h.Service.GetShipment(r.Context(), id)
	if err != nil {
		logrus.WithField("shipment_id", id).Warn("Shipment not found")
		http.Error(w, "Shipment not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shipment)
}

// UpdateShipmentHandler replaces a shipment. The schedule is regenerated
// from the new reference dates, keeping completion marks by template id.
func (h *ShipmentHandler) UpdateShipmentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var shipment models.Shipment
	if err := json.NewDecoder(r.Body).Decode(&shipment); err != nil {
		logrus.WithError(err).Warn("Invalid request payload during shipment update")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	updated, err := h.Service.UpdateShipment(r.Context(), id, &shipment)
	if err != nil {
		writeServiceError(w, err, "Failed to update shipment")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DeleteShipmentHandler removes a shipment by ID.
func (h *ShipmentHandler) DeleteShipmentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.Service.DeleteShipment(r.Context(), id); err != nil {
		logrus.WithError(err).WithField("shipment_id", id).Error("Failed to delete shipment")
		http.Error(w, "Failed to delete shipment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Shipment deleted"})
}

// ToggleMilestoneHandler patches one milestone's completion date. A null or
// missing completedDate reverses the completion.
func (h *ShipmentHandler) ToggleMilestoneHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shipmentID := vars["id"]
	milestoneID := vars["milestoneId"]

	var payload struct {
		CompletedDate *string `json:"completedDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logrus.WithError(err).Warn("Invalid request payload during milestone toggle")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	completedDate := ""
	if payload.CompletedDate != nil {
		completedDate = *payload.CompletedDate
	}

	if err := h.Service.ToggleMilestoneCompletion(r.Context(), shipmentID, milestoneID, completedDate); err != nil {
		writeServiceError(w, err, "Failed to update milestone")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Milestone updated"})
}

// writeServiceError maps validation problems to 400 and everything else to 500.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *schedule.ValidationError
	if errors.As(err, &verr) {
		http.Error(w, verr.Error(), http.StatusBadRequest)
		return
	}
	logrus.WithError(err).Error(fallback)
	http.Error(w, fallback, http.StatusInternalServerError)
}
