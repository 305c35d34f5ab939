package schedule

import (
	"fmt"

	"github.com/ejordan/importrack/internal/models"
)

// Template is one fixed milestone definition. The seven templates below are
// constants of the business process, not user configuration. Alert offsets
// never exceed due offsets.
type Template struct {
	ID                string
	Name              string
	Description       string
	Base              models.BaseReference
	DaysFromBase      int
	AlertDaysFromBase int
	Mandatory         bool
}

// Templates holds the full milestone plan of an import operation, in the
// order schedules are generated.
var Templates = []Template{
	{"H1", "Gestión de Documentos", "Factura y Packing List (5d post-ETD)", models.BaseETD, 5, 4, true},
	{"H2", "Vencimiento de la DAM", "Plazo legal (20d post-ETD, Alerta 15d)", models.BaseETD, 20, 15, true},
	{"H3", "Elaboración de la DIM", "Rapidez desaduanización (5d post-ETA, Alerta 3d)", models.BaseETA, 5, 3, true},
	{"H3.5", "Regularización de la DIM", "Trámite post-validación (20d post-VALIDACIÓN, Alerta 15d)", models.BaseDimVal, 20, 15, true},
	{"H4", "Devolución de Contenedor", "Evitar multas naviera (20d post-ETA, Alerta 15d)", models.BaseETA, 20, 15, true},
	{"H5", "Sobre-estadía de Puerto", "Costos almacenaje (30d post-ETA, Alerta 20d)", models.BaseETA, 30, 20, true},
	{"H6", "Cierre de Costeo", "Disponibilidad contable (4d post-ETA WH)", models.BaseETAWH, 4, 3, true},
}

// References carries the four shipment reference dates every milestone
// offset is anchored to, in YYYY-MM-DD form.
type References struct {
	ETD           string
	ETAPort       string
	ETAWarehouse  string
	DimValidation string
}

// ValidationError reports a malformed or missing reference date. No partial
// schedule is ever produced alongside one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reference date %s: %s", e.Field, e.Reason)
}

func (refs References) resolveBases() (map[models.BaseReference]string, error) {
	fields := []struct {
		name  string
		value string
		base  models.BaseReference
	}{
		{"etd", refs.ETD, models.BaseETD},
		{"etaPort", refs.ETAPort, models.BaseETA},
		{"etaWarehouse", refs.ETAWarehouse, models.BaseETAWH},
		{"dimValidation", refs.DimValidation, models.BaseDimVal},
	}

	bases := make(map[models.BaseReference]string, len(fields))
	for _, f := range fields {
		if f.value == "" {
			return nil, &ValidationError{Field: f.name, Reason: "required"}
		}
		if _, err := ParseDate(f.value); err != nil {
			return nil, &ValidationError{Field: f.name, Reason: fmt.Sprintf("not a YYYY-MM-DD date: %q", f.value)}
		}
		bases[f.base] = f.value
	}
	return bases, nil
}

// Generate derives the full milestone schedule from the reference dates.
// Pure and deterministic: same references always yield the same seven
// milestones in template order, all PENDING, nothing completed or notified.
func Generate(refs References) ([]models.Milestone, error) {
	bases, err := refs.resolveBases()
	if err != nil {
		return nil, err
	}

	milestones := make([]models.Milestone, 0, len(Templates))
	for _, t := range Templates {
		base, _ := ParseDate(bases[t.Base])
		milestones = append(milestones, models.Milestone{
			TemplateID:        t.ID,
			Name:              t.Name,
			Description:       t.Description,
			BaseReference:     t.Base,
			DaysFromBase:      t.DaysFromBase,
			AlertDaysFromBase: t.AlertDaysFromBase,
			DueDate:           FormatDate(base.AddDate(0, 0, t.DaysFromBase)),
			AlertDate:         FormatDate(base.AddDate(0, 0, t.AlertDaysFromBase)),
			Status:            models.StatusPending,
			Mandatory:         t.Mandatory,
		})
	}
	return milestones, nil
}

// Regenerate rebuilds the schedule wholesale from new reference dates,
// transplanting completion marks and notification acknowledgments from the
// previous schedule by template id. Editing reference dates must never erase
// a recorded completion.
func Regenerate(refs References, prev []models.Milestone) ([]models.Milestone, error) {
	milestones, err := Generate(refs)
	if err != nil {
		return nil, err
	}

	prevByID := make(map[string]models.Milestone, len(prev))
	for _, m := range prev {
		prevByID[m.TemplateID] = m
	}

	for i := range milestones {
		old, ok := prevByID[milestones[i].TemplateID]
		if !ok {
			continue
		}
		milestones[i].CompletedDate = old.CompletedDate
		milestones[i].Notified = old.Notified
		if old.Completed() {
			milestones[i].Status = models.StatusCompleted
		}
	}
	return milestones, nil
}
