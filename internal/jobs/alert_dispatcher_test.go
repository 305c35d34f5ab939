package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ejordan/importrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory ShipmentStore with the same conditional-write
// semantics as the Mongo repository.
type fakeStore struct {
	mu        sync.Mutex
	shipments []models.Shipment
	// snapshot, when set, is what GetAllShipments returns instead of the
	// authoritative shipments. Lets tests hand the scan a stale view.
	snapshot []models.Shipment
	markErr  error
}

func (f *fakeStore) GetAllShipments(ctx context.Context) ([]models.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.shipments
	if f.snapshot != nil {
		src = f.snapshot
	}
	out := make([]models.Shipment, len(src))
	for i, s := range src {
		out[i] = s
		out[i].Milestones = append([]models.Milestone(nil), s.Milestones...)
	}
	return out, nil
}

func (f *fakeStore) GetMilestone(ctx context.Context, shipmentID, templateID string) (*models.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.shipments {
		if s.ID != shipmentID {
			continue
		}
		for _, m := range s.Milestones {
			if m.TemplateID == templateID {
				found := m
				return &found, nil
			}
		}
	}
	return nil, fmt.Errorf("milestone %s/%s not found", shipmentID, templateID)
}

func (f *fakeStore) MarkMilestoneNotified(ctx context.Context, shipmentID, templateID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	for si := range f.shipments {
		if f.shipments[si].ID != shipmentID {
			continue
		}
		for mi := range f.shipments[si].Milestones {
			m := &f.shipments[si].Milestones[mi]
			if m.TemplateID == templateID {
				if m.Notified {
					return false, nil
				}
				m.Notified = true
				return true, nil
			}
		}
	}
	return false, fmt.Errorf("milestone %s/%s not found", shipmentID, templateID)
}

func (f *fakeStore) milestone(t *testing.T, shipmentID, templateID string) models.Milestone {
	t.Helper()
	m, err := f.GetMilestone(context.Background(), shipmentID, templateID)
	require.NoError(t, err)
	return *m
}

type fakeSender struct {
	mu    sync.Mutex
	calls int
	err   error
	// gate, when set, blocks sends until closed.
	gate chan struct{}
}

func (f *fakeSender) SendMilestoneAlert(ctx context.Context, s *models.Shipment, m *models.Milestone) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testToday is the fixed scan date; alertingMilestone is inside its alert
// window (alert passed, due not yet).
var testToday = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func alertingMilestone(id string) models.Milestone {
	return models.Milestone{
		TemplateID: id,
		Name:       "Vencimiento de la DAM",
		DueDate:    "2024-03-20",
		AlertDate:  "2024-03-14",
		Status:     models.StatusPending,
	}
}

func newTestDispatcher(store *fakeStore, sender *fakeSender) *AlertDispatcher {
	d := NewAlertDispatcher(store, sender, 4, time.Second)
	d.Now = func() time.Time { return testToday }
	return d
}

func TestScanDispatchesAtMostOncePerOccurrence(t *testing.T) {
	store := &fakeStore{shipments: []models.Shipment{
		{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{alertingMilestone("H2")}},
	}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender)

	rep := d.Scan(context.Background())
	assert.Equal(t, 1, rep.Candidates)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 1, sender.sent())
	assert.True(t, store.milestone(t, "SHP-1", "H2").Notified)

	// Same inputs again: the durable flag suppresses any further dispatch.
	rep = d.Scan(context.Background())
	assert.Equal(t, 0, rep.Candidates)
	assert.Equal(t, 0, rep.Sent)
	assert.Equal(t, 1, sender.sent())
}

func TestConcurrentScansSendOnce(t *testing.T) {
	store := &fakeStore{shipments: []models.Shipment{
		{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{alertingMilestone("H2")}},
	}}
	sender := &fakeSender{gate: make(chan struct{})}
	d := newTestDispatcher(store, sender)

	var wg sync.WaitGroup
	reports := make([]Report, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = d.Scan(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond) // let both scans reach the milestone
	close(sender.gate)
	wg.Wait()

	assert.Equal(t, 1, sender.sent(), "overlapping scans must not double-send")
	assert.Equal(t, 1, reports[0].Sent+reports[1].Sent)
	assert.True(t, store.milestone(t, "SHP-1", "H2").Notified)
}

func TestTransportFailureIsRetriedNextScan(t *testing.T) {
	store := &fakeStore{shipments: []models.Shipment{
		{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{alertingMilestone("H2")}},
	}}
	sender := &fakeSender{err: errors.New("smtp: connection refused")}
	d := newTestDispatcher(store, sender)

	rep := d.Scan(context.Background())
	assert.Equal(t, 1, rep.SendFailures)
	assert.Equal(t, 0, rep.Sent)
	assert.False(t, store.milestone(t, "SHP-1", "H2").Notified, "flag stays false so the next scan retries")

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	rep = d.Scan(context.Background())
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 2, sender.sent())
	assert.True(t, store.milestone(t, "SHP-1", "H2").Notified)
}

func TestCompletionSuppressesPendingSend(t *testing.T) {
	completed := alertingMilestone("H2")
	completed.CompletedDate = "2024-03-15"

	// The scan works from a stale snapshot that still shows the milestone
	// uncompleted; the fresh read before sending sees the completion.
	store := &fakeStore{
		shipments: []models.Shipment{
			{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{completed}},
		},
		snapshot: []models.Shipment{
			{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{alertingMilestone("H2")}},
		},
	}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender)

	rep := d.Scan(context.Background())
	assert.Equal(t, 1, rep.Candidates)
	assert.Equal(t, 1, rep.Suppressed)
	assert.Equal(t, 0, sender.sent(), "complete-before-send must suppress the send")
	assert.False(t, store.milestone(t, "SHP-1", "H2").Notified)
}

func TestPersistFailureIsSurfaced(t *testing.T) {
	store := &fakeStore{
		shipments: []models.Shipment{
			{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{alertingMilestone("H2")}},
		},
		markErr: errors.New("write concern failed"),
	}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender)

	rep := d.Scan(context.Background())
	assert.Equal(t, 1, sender.sent(), "the notification itself went out")
	assert.Equal(t, 1, rep.PersistFailures, "unrecorded acknowledgment must be reported")
	assert.Equal(t, 0, rep.Sent)
}

func TestScanSurvivesBadMilestoneDates(t *testing.T) {
	broken := models.Milestone{TemplateID: "H1", DueDate: "not-a-date", AlertDate: "also-bad"}
	store := &fakeStore{shipments: []models.Shipment{
		{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{broken, alertingMilestone("H2")}},
	}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender)

	rep := d.Scan(context.Background())
	assert.Equal(t, 2, rep.Evaluated)
	assert.Equal(t, 1, rep.Sent, "one bad milestone must not abort the rest of the scan")
}

func TestTriggerNeverBlocksAndRunDrains(t *testing.T) {
	store := &fakeStore{shipments: []models.Shipment{
		{ID: "SHP-1", Identifier: "BL-001", Milestones: []models.Milestone{alertingMilestone("H2")}},
	}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender)

	// Bursts collapse into one pending scan and never block the caller.
	for i := 0; i < 5; i++ {
		d.Trigger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.Eventually(t, func() bool {
		return sender.sent() == 1
	}, time.Second, 10*time.Millisecond)

	// Once acknowledged, further triggers cause no further sends.
	d.Trigger()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sender.sent())
}
