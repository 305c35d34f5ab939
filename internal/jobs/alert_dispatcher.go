package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/ejordan/importrack/internal/models"
	"github.com/ejordan/importrack/internal/schedule"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ShipmentStore is the slice of the record store the dispatcher needs: a
// snapshot read, a fresh single-milestone read, and a conditional write that
// claims the notified flag only if it was still false.
type ShipmentStore interface {
	GetAllShipments(ctx context.Context) ([]models.Shipment, error)
	GetMilestone(ctx context.Context, shipmentID, templateID string) (*models.Milestone, error)
	MarkMilestoneNotified(ctx context.Context, shipmentID, templateID string) (bool, error)
}

// AlertSender is the outbound notification transport. Expected failures
// (transport down, bad recipient) come back as errors, never panics.
type AlertSender interface {
	SendMilestoneAlert(ctx context.Context, shipment *models.Shipment, milestone *models.Milestone) error
}

// AlertDispatcher scans shipments for milestones that entered ALERT status
// unacknowledged and dispatches one notification per alert occurrence.
// At-most-once is enforced twice over: an in-process per-milestone guard
// serializes overlapping scans, and the store's conditional write is the
// durable claim on the flag.
type AlertDispatcher struct {
	store       ShipmentStore
	sender      AlertSender
	maxInFlight int
	sendTimeout time.Duration

	// Now is the clock used to resolve statuses; replaceable in tests.
	Now func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}

	trigger chan struct{}
}

// Report summarizes one scan. PersistFailures means a notification went out
// but the acknowledgment could not be recorded, which risks a duplicate on
// the next scan; it is logged at error level for the operator.
type Report struct {
	Evaluated       int
	Candidates      int
	Sent            int
	Suppressed      int
	SendFailures    int
	PersistFailures int
}

// NewAlertDispatcher creates a new instance of AlertDispatcher. maxInFlight
// caps concurrent transport calls; sendTimeout bounds each one.
func NewAlertDispatcher(store ShipmentStore, sender AlertSender, maxInFlight int, sendTimeout time.Duration) *AlertDispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &AlertDispatcher{
		store:       store,
		sender:      sender,
		maxInFlight: maxInFlight,
		sendTimeout: sendTimeout,
		Now:         time.Now,
		inFlight:    make(map[string]struct{}),
		trigger:     make(chan struct{}, 1),
	}
}

// Trigger requests a scan without blocking. Bursts of mutations collapse
// into a single pending scan.
func (d *AlertDispatcher) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Run drains scan triggers until the context is canceled.
func (d *AlertDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.trigger:
			d.Scan(ctx)
		}
	}
}

// Scan evaluates the live status of every milestone and dispatches a
// notification for each one in ALERT status that is uncompleted and
// unacknowledged. Sends fan out up to maxInFlight at a time; no per-item
// failure aborts the rest of the scan.
func (d *AlertDispatcher) Scan(ctx context.Context) Report {
	shipments, err := d.store.GetAllShipments(ctx)
	if err != nil {
		logrus.WithError(err).Error("Alert scan failed to fetch shipments")
		return Report{}
	}

	today := schedule.Day(d.Now())
	var (
		mu  sync.Mutex
		rep Report
	)

	g := new(errgroup.Group)
	g.SetLimit(d.maxInFlight)

	for si := range shipments {
		s := shipments[si]
		for mi := range s.Milestones {
			m := s.Milestones[mi]
			rep.Evaluated++

			status, err := schedule.Resolve(m, today)
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"shipment_id":  s.ID,
					"milestone_id": m.TemplateID,
				}).Warn("Skipping milestone with unresolvable dates")
				continue
			}
			if status != models.StatusAlert || m.Completed() || m.Notified {
				continue
			}
			rep.Candidates++

			shipment, milestone := s, m
			g.Go(func() error {
				outcome := d.process(ctx, &shipment, &milestone, today)
				mu.Lock()
				switch outcome {
				case outcomeSent:
					rep.Sent++
				case outcomeSuppressed:
					rep.Suppressed++
				case outcomeSendFailed:
					rep.SendFailures++
				case outcomePersistFailed:
					rep.PersistFailures++
				}
				mu.Unlock()
				return nil
			})
		}
	}
	g.Wait()

	return rep
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSuppressed
	outcomeSendFailed
	outcomePersistFailed
)

// process runs the check-send-mark sequence for one milestone. The in-flight
// guard keeps overlapping scans from working the same milestone; the fresh
// read suppresses sends for milestones completed or acknowledged since the
// snapshot. A completion landing after the fresh read but before the
// transport returns is accepted as a benign false positive.
func (d *AlertDispatcher) process(ctx context.Context, s *models.Shipment, m *models.Milestone, today time.Time) outcome {
	key := s.ID + "/" + m.TemplateID
	if !d.acquire(key) {
		return outcomeSuppressed
	}
	defer d.release(key)

	log := logrus.WithFields(logrus.Fields{
		"shipment_id":  s.ID,
		"identifier":   s.Identifier,
		"milestone_id": m.TemplateID,
	})

	fresh, err := d.store.GetMilestone(ctx, s.ID, m.TemplateID)
	if err != nil {
		log.WithError(err).Warn("Could not re-validate milestone before dispatch")
		return outcomeSuppressed
	}
	if fresh.Completed() || fresh.Notified {
		return outcomeSuppressed
	}
	if status, err := schedule.Resolve(*fresh, today); err != nil || status != models.StatusAlert {
		return outcomeSuppressed
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.sender.SendMilestoneAlert(sendCtx, s, fresh); err != nil {
		// Transient: the flag stays false and the next scan retries.
		log.WithError(err).Warn("Milestone alert dispatch failed, will retry on next scan")
		return outcomeSendFailed
	}

	claimed, err := d.store.MarkMilestoneNotified(ctx, s.ID, m.TemplateID)
	if err != nil {
		// The notification went out but the acknowledgment did not stick.
		// Next scan may re-notify; this needs operator attention.
		log.WithError(err).Error("Notification sent but acknowledgment could not be persisted")
		return outcomePersistFailed
	}
	if !claimed {
		log.Warn("Notified flag was already claimed elsewhere")
	}

	log.Info("Milestone alert dispatched")
	return outcomeSent
}

func (d *AlertDispatcher) acquire(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[key]; busy {
		return false
	}
	d.inFlight[key] = struct{}{}
	return true
}

func (d *AlertDispatcher) release(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, key)
}
