// Package kpi computes fleet-wide indicators over the live milestone
// statuses of a shipment set. The input set is taken as-is; any date-range
// filtering happens at the caller.
package kpi

import (
	"fmt"
	"math"
	"time"

	"github.com/ejordan/importrack/internal/models"
	"github.com/ejordan/importrack/internal/schedule"
)

// Per-status projected cost of an incomplete milestone, in currency units.
const (
	riskOverdue = 650
	riskAlert   = 500
)

// Stats are the aggregate indicators shown on the dashboard.
type Stats struct {
	Total      int    `json:"total"`
	Completion int    `json:"completion"`
	Deviation  string `json:"deviation"`
	Risk       int    `json:"risk"`
}

// Aggregate resolves every milestone of every shipment against today and
// folds the results into Stats. Completion is the rounded percentage of
// completed milestones, Deviation the mean days of late completion over
// completed milestones (one decimal, "0" when nothing is completed), Risk
// the summed cost weight of incomplete milestones. An empty set yields
// all-zero results.
func Aggregate(shipments []models.Shipment, today time.Time) Stats {
	stats := Stats{Total: len(shipments), Deviation: "0"}
	if len(shipments) == 0 {
		return stats
	}

	var totalTasks, completedTasks, lateDays int
	for _, s := range shipments {
		for _, m := range s.Milestones {
			totalTasks++
			if m.Completed() {
				completedTasks++
				lateDays += daysLate(m)
				continue
			}
			status, err := schedule.Resolve(m, today)
			if err != nil {
				// Unresolvable dates contribute nothing; counted in totals only.
				continue
			}
			switch status {
			case models.StatusOverdue:
				stats.Risk += riskOverdue
			case models.StatusAlert:
				stats.Risk += riskAlert
			}
		}
	}

	if totalTasks > 0 {
		stats.Completion = int(math.Round(float64(completedTasks) / float64(totalTasks) * 100))
	}
	if completedTasks > 0 {
		stats.Deviation = fmt.Sprintf("%.1f", float64(lateDays)/float64(completedTasks))
	}
	return stats
}

// daysLate is the positive day count a completion landed past its due date,
// zero for on-time or early completions and for unparseable dates.
func daysLate(m models.Milestone) int {
	due, err := schedule.ParseDate(m.DueDate)
	if err != nil {
		return 0
	}
	completed, err := schedule.ParseDate(m.CompletedDate)
	if err != nil {
		return 0
	}
	if d := schedule.DaysBetween(due, completed); d > 0 {
		return d
	}
	return 0
}
