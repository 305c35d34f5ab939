package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ejordan/importrack/internal/kpi"
	"github.com/ejordan/importrack/internal/models"
	"github.com/ejordan/importrack/internal/repository"
	"github.com/ejordan/importrack/internal/schedule"
	"github.com/ejordan/importrack/pkg/logger"
	"github.com/google/uuid"
)

// ScanTrigger nudges the alert dispatcher after a mutation. Non-blocking.
type ScanTrigger interface {
	Trigger()
}

// ShipmentService encapsulates the business logic for shipments: schedule
// generation on create, wholesale regeneration on edit, live status
// projection on read, and KPI aggregation.
type ShipmentService struct {
	repo    *repository.ShipmentRepository
	scanner ScanTrigger
}

// NewShipmentService creates a new instance of ShipmentService.
func NewShipmentService(repo *repository.ShipmentRepository, scanner ScanTrigger) *ShipmentService {
	return &ShipmentService{
		repo:    repo,
		scanner: scanner,
	}
}

func references(s *models.Shipment) schedule.References {
	return schedule.References{
		ETD:           s.ETD,
		ETAPort:       s.ETAPort,
		ETAWarehouse:  s.ETAWarehouse,
		DimValidation: s.DimValidation,
	}
}

// CreateShipment validates the input, derives the milestone schedule from
// the reference dates and stores the shipment atomically with it.
func (s *ShipmentService) CreateShipment(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error) {
	if shipment.Identifier == "" {
		logger.Log.Warn("Shipment identifier is empty during creation")
		return nil, fmt.Errorf("shipment identifier is required")
	}

	milestones, err := schedule.Generate(references(shipment))
	if err != nil {
		logger.Log.WithError(err).Warn("Invalid reference dates during shipment creation")
		return nil, err
	}
	shipment.Milestones = milestones

	if shipment.ID == "" {
		shipment.ID = uuid.NewString()
	}

	created, err := s.repo.CreateShipment(ctx, shipment)
	if err != nil {
		return nil, fmt.Errorf("failed to create shipment: %v", err)
	}

	s.scanner.Trigger()
	logger.Log.WithField("shipment_id", created.ID).Info("Shipment created in service layer")
	return created, nil
}

// GetShipment retrieves a shipment with live milestone statuses.
func (s *ShipmentService) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	shipment, err := s.repo.GetShipmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	projectStatuses(shipment, time.Now())
	return shipment, nil
}

// GetAllShipments retrieves every shipment with live milestone statuses.
func (s *ShipmentService) GetAllShipments(ctx context.Context) ([]models.Shipment, error) {
	shipments, err := s.repo.GetAllShipments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shipments: %v", err)
	}

	now := time.Now()
	for i := range shipments {
		projectStatuses(&shipments[i], now)
	}
	return shipments, nil
}

// UpdateShipment replaces a shipment's fields and regenerates its milestone
// schedule from the new reference dates, preserving completion marks and
// notification acknowledgments by template id.
func (s *ShipmentService) UpdateShipment(ctx context.Context, id string, updated *models.Shipment) (*models.Shipment, error) {
	existing, err := s.repo.GetShipmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("shipment not found: %v", err)
	}

	milestones, err := schedule.Regenerate(references(updated), existing.Milestones)
	if err != nil {
		logger.Log.WithError(err).WithField("shipment_id", id).Warn("Invalid reference dates during shipment update")
		return nil, err
	}
	updated.Milestones = milestones
	updated.CreatedAt = existing.CreatedAt

	replaced, err := s.repo.ReplaceShipment(ctx, id, updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update shipment: %v", err)
	}

	s.scanner.Trigger()
	logger.Log.WithField("shipment_id", id).Info("Shipment updated in service layer")
	return replaced, nil
}

// DeleteShipment removes a shipment and its milestones.
func (s *ShipmentService) DeleteShipment(ctx context.Context, id string) error {
	if err := s.repo.DeleteShipment(ctx, id); err != nil {
		return fmt.Errorf("failed to delete shipment: %v", err)
	}
	return nil
}

// ToggleMilestoneCompletion sets or clears one milestone's completion date.
// Passing an empty date reverses the completion; the notified flag is never
// reset automatically.
func (s *ShipmentService) ToggleMilestoneCompletion(ctx context.Context, shipmentID, templateID, completedDate string) error {
	if completedDate != "" {
		if _, err := schedule.ParseDate(completedDate); err != nil {
			return fmt.Errorf("invalid completion date: %v", err)
		}
	}

	if err := s.repo.SetMilestoneCompletion(ctx, shipmentID, templateID, completedDate); err != nil {
		return err
	}

	s.scanner.Trigger()
	logger.Log.WithFields(map[string]interface{}{
		"shipment_id":  shipmentID,
		"milestone_id": templateID,
		"completed":    completedDate != "",
	}).Info("Milestone completion toggled")
	return nil
}

// Stats aggregates fleet KPIs, optionally over shipments whose warehouse
// ETA falls inside [from, to].
func (s *ShipmentService) Stats(ctx context.Context, from, to string) (kpi.Stats, error) {
	for _, bound := range []string{from, to} {
		if bound != "" {
			if _, err := schedule.ParseDate(bound); err != nil {
				return kpi.Stats{}, fmt.Errorf("invalid range bound: %v", err)
			}
		}
	}

	shipments, err := s.repo.GetShipmentsByWarehouseETARange(ctx, from, to)
	if err != nil {
		return kpi.Stats{}, fmt.Errorf("failed to fetch shipments for stats: %v", err)
	}
	return kpi.Aggregate(shipments, time.Now()), nil
}

// projectStatuses stamps each milestone's live status onto the returned
// snapshot. Unresolvable dates keep the stored audit value.
func projectStatuses(shipment *models.Shipment, now time.Time) {
	for i := range shipment.Milestones {
		if status, err := schedule.Resolve(shipment.Milestones[i], now); err == nil {
			shipment.Milestones[i].Status = status
		}
	}
}
