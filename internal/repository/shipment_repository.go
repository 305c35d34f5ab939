package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ejordan/importrack/internal/models"
	"github.com/ejordan/importrack/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ShipmentRepository handles database operations related to shipments and
// their embedded milestones.
type ShipmentRepository struct {
	collection *mongo.Collection
}

// NewShipmentRepository creates a new instance of ShipmentRepository.
func NewShipmentRepository(db *mongo.Database) *ShipmentRepository {
	return &ShipmentRepository{
		collection: db.Collection("shipments"),
	}
}

// CreateShipment inserts a shipment together with its full milestone set.
func (r *ShipmentRepository) CreateShipment(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error) {
	shipment.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, shipment)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert shipment")
		return nil, fmt.Errorf("failed to insert shipment: %v", err)
	}

	logger.Log.WithField("shipment_id", shipment.ID).Info("Shipment created successfully")
	return shipment, nil
}

// GetShipmentByID fetches a shipment by its ID.
func (r *ShipmentRepository) GetShipmentByID(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&shipment)
	if err != nil {
		logger.Log.WithError(err).WithField("shipment_id", id).Error("Failed to find shipment by ID")
		return nil, fmt.Errorf("failed to find shipment %s: %v", id, err)
	}
	return &shipment, nil
}

// GetAllShipments fetches every shipment, newest first.
func (r *ShipmentRepository) GetAllShipments(ctx context.Context) ([]models.Shipment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to fetch shipments")
		return nil, fmt.Errorf("failed to fetch shipments: %v", err)
	}
	defer cursor.Close(ctx)

	var shipments []models.Shipment
	if err := cursor.All(ctx, &shipments); err != nil {
		logger.Log.WithError(err).Error("Failed to decode shipments")
		return nil, fmt.Errorf("failed to decode shipments: %v", err)
	}
	return shipments, nil
}

// GetShipmentsByWarehouseETARange fetches shipments whose warehouse ETA
// falls inside [from, to]. Either bound may be empty to leave that side
// open. Dates are YYYY-MM-DD strings, so lexicographic range queries are
// chronologically correct.
func (r *ShipmentRepository) GetShipmentsByWarehouseETARange(ctx context.Context, from, to string) ([]models.Shipment, error) {
	rangeFilter := bson.M{}
	if from != "" {
		rangeFilter["$gte"] = from
	}
	if to != "" {
		rangeFilter["$lte"] = to
	}

	filter := bson.M{}
	if len(rangeFilter) > 0 {
		filter["eta_warehouse"] = rangeFilter
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to fetch shipments by warehouse ETA range")
		return nil, fmt.Errorf("failed to fetch shipments by range: %v", err)
	}
	defer cursor.Close(ctx)

	var shipments []models.Shipment
	if err := cursor.All(ctx, &shipments); err != nil {
		return nil, fmt.Errorf("failed to decode shipments: %v", err)
	}
	return shipments, nil
}

// ReplaceShipment overwrites a shipment's fields and milestone set.
func (r *ShipmentRepository) ReplaceShipment(ctx context.Context, id string, shipment *models.Shipment) (*models.Shipment, error) {
	shipment.ID = id

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": id}, shipment)
	if err != nil {
		logger.Log.WithError(err).WithField("shipment_id", id).Error("Failed to replace shipment")
		return nil, fmt.Errorf("failed to replace shipment %s: %v", id, err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("shipment %s not found", id)
	}

	logger.Log.WithField("shipment_id", id).Info("Shipment updated successfully")
	return shipment, nil
}

// DeleteShipment removes a shipment and, with it, its milestones.
func (r *ShipmentRepository) DeleteShipment(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logger.Log.WithError(err).WithField("shipment_id", id).Error("Failed to delete shipment")
		return fmt.Errorf("failed to delete shipment %s: %v", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("shipment %s not found", id)
	}

	logger.Log.WithField("shipment_id", id).Info("Shipment deleted successfully")
	return nil
}

// SetMilestoneCompletion patches one milestone's completion date. An empty
// completedDate reverses the completion. The stored status field is only an
// audit snapshot; live status is always recomputed on read.
func (r *ShipmentRepository) SetMilestoneCompletion(ctx context.Context, shipmentID, templateID, completedDate string) error {
	filter := bson.M{
		"_id":        shipmentID,
		"milestones": bson.M{"$elemMatch": bson.M{"template_id": templateID}},
	}

	var update bson.M
	if completedDate != "" {
		update = bson.M{"$set": bson.M{
			"milestones.$.completed_date": completedDate,
			"milestones.$.status":         models.StatusCompleted,
		}}
	} else {
		update = bson.M{
			"$unset": bson.M{"milestones.$.completed_date": ""},
			"$set":   bson.M{"milestones.$.status": models.StatusPending},
		}
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"shipment_id":  shipmentID,
			"milestone_id": templateID,
		}).Error("Failed to patch milestone completion")
		return fmt.Errorf("failed to patch milestone %s/%s: %v", shipmentID, templateID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("milestone %s/%s not found", shipmentID, templateID)
	}
	return nil
}

// GetMilestone fetches a fresh copy of a single milestone. The dispatcher
// uses it to re-validate a send decision right before dispatching.
func (r *ShipmentRepository) GetMilestone(ctx context.Context, shipmentID, templateID string) (*models.Milestone, error) {
	shipment, err := r.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	for i := range shipment.Milestones {
		if shipment.Milestones[i].TemplateID == templateID {
			return &shipment.Milestones[i], nil
		}
	}
	return nil, fmt.Errorf("milestone %s/%s not found", shipmentID, templateID)
}

// MarkMilestoneNotified sets a milestone's notified flag, succeeding only if
// it was still false. The conditional filter makes the flag a durable
// compare-and-set: concurrent scans race here and exactly one claims it.
// Returns whether this call claimed the flag.
func (r *ShipmentRepository) MarkMilestoneNotified(ctx context.Context, shipmentID, templateID string) (bool, error) {
	filter := bson.M{
		"_id": shipmentID,
		"milestones": bson.M{"$elemMatch": bson.M{
			"template_id": templateID,
			"notified":    false,
		}},
	}
	update := bson.M{"$set": bson.M{"milestones.$.notified": true}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"shipment_id":  shipmentID,
			"milestone_id": templateID,
		}).Error("Failed to mark milestone notified")
		return false, fmt.Errorf("failed to mark milestone %s/%s notified: %v", shipmentID, templateID, err)
	}
	return res.ModifiedCount == 1, nil
}
