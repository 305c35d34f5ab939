package schedule

import (
	"testing"
	"time"

	"github.com/ejordan/importrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRefs = References{
	ETD:           "2024-01-01",
	ETAPort:       "2024-02-01",
	ETAWarehouse:  "2024-02-10",
	DimValidation: "2024-02-05",
}

func findMilestone(t *testing.T, milestones []models.Milestone, id string) models.Milestone {
	t.Helper()
	for _, m := range milestones {
		if m.TemplateID == id {
			return m
		}
	}
	t.Fatalf("milestone %s not found", id)
	return models.Milestone{}
}

func TestGenerateOffsetsMatchTemplates(t *testing.T) {
	milestones, err := Generate(testRefs)
	require.NoError(t, err)
	require.Len(t, milestones, len(Templates))

	bases := map[models.BaseReference]string{
		models.BaseETD:    testRefs.ETD,
		models.BaseETA:    testRefs.ETAPort,
		models.BaseETAWH:  testRefs.ETAWarehouse,
		models.BaseDimVal: testRefs.DimValidation,
	}

	for i, m := range milestones {
		tmpl := Templates[i]
		assert.Equal(t, tmpl.ID, m.TemplateID, "output must follow template order")

		base, err := ParseDate(bases[m.BaseReference])
		require.NoError(t, err)
		due, err := ParseDate(m.DueDate)
		require.NoError(t, err)
		alert, err := ParseDate(m.AlertDate)
		require.NoError(t, err)

		assert.Equal(t, tmpl.DaysFromBase, DaysBetween(base, due), "due offset for %s", m.TemplateID)
		assert.Equal(t, tmpl.AlertDaysFromBase, DaysBetween(base, alert), "alert offset for %s", m.TemplateID)
		assert.False(t, alert.After(due), "alert date must not exceed due date for %s", m.TemplateID)

		assert.Equal(t, models.StatusPending, m.Status)
		assert.Empty(t, m.CompletedDate)
		assert.False(t, m.Notified)
	}
}

func TestGenerateKnownDates(t *testing.T) {
	milestones, err := Generate(testRefs)
	require.NoError(t, err)

	h1 := findMilestone(t, milestones, "H1")
	assert.Equal(t, "2024-01-06", h1.DueDate)
	assert.Equal(t, "2024-01-05", h1.AlertDate)

	h2 := findMilestone(t, milestones, "H2")
	assert.Equal(t, "2024-01-21", h2.DueDate)
	assert.Equal(t, "2024-01-16", h2.AlertDate)
}

func TestGenerateRejectsBadReferences(t *testing.T) {
	cases := map[string]References{
		"missing etd":      {ETAPort: "2024-02-01", ETAWarehouse: "2024-02-10", DimValidation: "2024-02-05"},
		"malformed etaWh":  {ETD: "2024-01-01", ETAPort: "2024-02-01", ETAWarehouse: "10/02/2024", DimValidation: "2024-02-05"},
		"garbage dim date": {ETD: "2024-01-01", ETAPort: "2024-02-01", ETAWarehouse: "2024-02-10", DimValidation: "soon"},
	}

	for name, refs := range cases {
		t.Run(name, func(t *testing.T) {
			milestones, err := Generate(refs)
			require.Error(t, err)
			assert.Nil(t, milestones, "no partial schedule on validation failure")

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestResolveAdvancesMonotonically(t *testing.T) {
	m := models.Milestone{
		TemplateID: "H1",
		DueDate:    "2024-01-10",
		AlertDate:  "2024-01-07",
	}

	rank := map[models.MilestoneStatus]int{
		models.StatusPending: 0,
		models.StatusAlert:   1,
		models.StatusOverdue: 2,
	}

	expected := []struct {
		today  string
		status models.MilestoneStatus
	}{
		{"2024-01-01", models.StatusPending},
		{"2024-01-06", models.StatusPending},
		{"2024-01-07", models.StatusAlert},
		{"2024-01-10", models.StatusAlert},
		{"2024-01-11", models.StatusOverdue},
		{"2024-02-01", models.StatusOverdue},
	}

	prev := -1
	for _, tc := range expected {
		today, err := ParseDate(tc.today)
		require.NoError(t, err)
		status, err := Resolve(m, today)
		require.NoError(t, err)
		assert.Equal(t, tc.status, status, "at %s", tc.today)
		assert.GreaterOrEqual(t, rank[status], prev, "status must never reverse")
		prev = rank[status]
	}
}

func TestResolveCompletedIsSticky(t *testing.T) {
	m := models.Milestone{
		TemplateID:    "H3",
		DueDate:       "2024-01-10",
		AlertDate:     "2024-01-07",
		CompletedDate: "2024-01-20", // completed well past due
	}

	for _, today := range []string{"2024-01-01", "2024-01-09", "2024-01-25", "2025-01-01"} {
		d, err := ParseDate(today)
		require.NoError(t, err)
		status, err := Resolve(m, d)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, status, "at %s", today)
	}
}

func TestResolveTimeOfDayIsDiscarded(t *testing.T) {
	m := models.Milestone{DueDate: "2024-01-10", AlertDate: "2024-01-07"}

	lateEvening := time.Date(2024, 1, 10, 23, 45, 0, 0, time.Local)
	status, err := Resolve(m, lateEvening)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAlert, status, "due day itself is not overdue")
}

func TestRegeneratePreservesCompletionMarks(t *testing.T) {
	prev, err := Generate(testRefs)
	require.NoError(t, err)

	for i := range prev {
		if prev[i].TemplateID == "H2" {
			prev[i].CompletedDate = "2024-01-18"
			prev[i].Notified = true
		}
	}

	shifted := testRefs
	shifted.ETD = "2024-01-15"
	regenerated, err := Regenerate(shifted, prev)
	require.NoError(t, err)

	h2 := findMilestone(t, regenerated, "H2")
	assert.Equal(t, "2024-01-18", h2.CompletedDate, "completion survives reference date edits")
	assert.True(t, h2.Notified, "acknowledgment survives reference date edits")
	assert.Equal(t, models.StatusCompleted, h2.Status)
	assert.Equal(t, "2024-02-04", h2.DueDate, "due date follows the new ETD")

	h1 := findMilestone(t, regenerated, "H1")
	assert.Empty(t, h1.CompletedDate)
	assert.False(t, h1.Notified)
	assert.Equal(t, "2024-01-20", h1.DueDate)
}
