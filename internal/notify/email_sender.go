package notify

import (
	"context"
	"fmt"

	"github.com/ejordan/importrack/internal/models"
	"github.com/ejordan/importrack/pkg/email"
)

// EmailSender delivers milestone alerts over SMTP. It implements
// jobs.AlertSender; transport problems come back as errors for the
// dispatcher to retry on a later scan.
type EmailSender struct {
	cfg       email.Config
	recipient string
}

// NewEmailSender creates a new instance of EmailSender.
func NewEmailSender(cfg email.Config, recipient string) *EmailSender {
	return &EmailSender{cfg: cfg, recipient: recipient}
}

// SendMilestoneAlert renders and sends the alert mail for one milestone.
// net/smtp has no context support, so the blocking call runs aside and the
// dispatcher's timeout is honored here.
func (s *EmailSender) SendMilestoneAlert(ctx context.Context, shipment *models.Shipment, milestone *models.Milestone) error {
	subject := fmt.Sprintf("[ALERTA] Hito Crítico: %s - Operación %s", milestone.Name, shipment.Identifier)
	body := fmt.Sprintf(
		"Alerta de Hito Crítico\n\n"+
			"La operación %s con origen en %s tiene un vencimiento próximo.\n\n"+
			"Hito: %s\n"+
			"Descripción: %s\n"+
			"Fecha de Vencimiento: %s\n\n"+
			"Por favor, tome las acciones necesarias.\n",
		shipment.Identifier, shipment.Origin,
		milestone.Name, milestone.Description, milestone.DueDate,
	)

	done := make(chan error, 1)
	go func() {
		done <- email.Send(s.cfg, s.recipient, subject, body)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
