package schedule

import (
	"time"

	"github.com/ejordan/importrack/internal/models"
)

// Resolve projects a milestone's live status from its dates and the given
// "today". Pure, safe for concurrent use. A recorded completion wins
// unconditionally and is sticky; otherwise the status advances
// PENDING → ALERT → OVERDUE as today crosses the alert and due dates.
// The milestone's stored Status field plays no part here.
func Resolve(m models.Milestone, today time.Time) (models.MilestoneStatus, error) {
	if m.Completed() {
		return models.StatusCompleted, nil
	}

	due, err := ParseDate(m.DueDate)
	if err != nil {
		return "", err
	}
	alert, err := ParseDate(m.AlertDate)
	if err != nil {
		return "", err
	}

	d := Day(today)
	switch {
	case d.After(due):
		return models.StatusOverdue, nil
	case !d.Before(alert):
		return models.StatusAlert, nil
	default:
		return models.StatusPending, nil
	}
}
