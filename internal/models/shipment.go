package models

import "time"

// MilestoneStatus is the live state of a milestone relative to "today".
// The value persisted on the milestone is only an audit snapshot; display
// and aggregation always recompute it from the dates.
type MilestoneStatus string

const (
	StatusPending   MilestoneStatus = "PENDING"
	StatusAlert     MilestoneStatus = "ALERT"
	StatusOverdue   MilestoneStatus = "OVERDUE"
	StatusCompleted MilestoneStatus = "COMPLETED"
)

// BaseReference names the shipment reference date a milestone offset is
// anchored to.
type BaseReference string

const (
	BaseETD    BaseReference = "ETD"
	BaseETA    BaseReference = "ETA"
	BaseETAWH  BaseReference = "ETAWH"
	BaseDimVal BaseReference = "DIM_VAL"
)

// Milestone is a single compliance deadline derived from one of the
// shipment's reference dates. Milestones have no identity outside their
// parent shipment; TemplateID is unique only within one shipment.
type Milestone struct {
	TemplateID        string          `bson:"template_id" json:"id"`
	Name              string          `bson:"name" json:"name"`
	Description       string          `bson:"description" json:"description"`
	BaseReference     BaseReference   `bson:"base_reference" json:"baseReference"`
	DaysFromBase      int             `bson:"days_from_base" json:"daysFromBase"`
	AlertDaysFromBase int             `bson:"alert_days_from_base" json:"alertDaysFromBase"`
	DueDate           string          `bson:"due_date" json:"dueDate"`
	AlertDate         string          `bson:"alert_date" json:"alertDate"`
	CompletedDate     string          `bson:"completed_date,omitempty" json:"completedDate,omitempty"`
	Status            MilestoneStatus `bson:"status" json:"status"`
	Mandatory         bool            `bson:"mandatory" json:"isMandatory"`
	Notified          bool            `bson:"notified" json:"notified"`
}

// Completed reports whether a completion date has been recorded.
func (m *Milestone) Completed() bool {
	return m.CompletedDate != ""
}

// Shipment is one import operation with its four reference dates and the
// milestone schedule derived from them. All dates are calendar days in
// YYYY-MM-DD form; comparisons are at day granularity.
type Shipment struct {
	ID            string      `bson:"_id" json:"id"`
	Identifier    string      `bson:"identifier" json:"identifier"`
	Origin        string      `bson:"origin" json:"origin"`
	Destination   string      `bson:"destination" json:"destination"`
	ETD           string      `bson:"etd" json:"etd"`
	ETAPort       string      `bson:"eta_port" json:"etaPort"`
	ETAWarehouse  string      `bson:"eta_warehouse" json:"etaWarehouse"`
	DimValidation string      `bson:"dim_validation" json:"dimValidation"`
	Milestones    []Milestone `bson:"milestones" json:"milestones"`
	CreatedAt     time.Time   `bson:"created_at" json:"createdAt"`
}
