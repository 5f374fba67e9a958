package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadcrm-booking/internal/appointments"
	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/leads"
	"github.com/wolfman30/leadcrm-booking/internal/notify"
	"github.com/wolfman30/leadcrm-booking/internal/observability/metrics"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Reminder
	err  error
}

func (c *captureNotifier) SendAppointmentReminder(_ context.Context, r notify.Reminder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.LeadEmail == "" {
		return notify.ErrNoRecipient
	}
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, r)
	return nil
}

type fixture struct {
	repo     *appointments.InMemoryRepository
	leads    *leads.InMemoryRepository
	notifier *captureNotifier
	worker   *Worker
	registry *prometheus.Registry
}

var base = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     appointments.NewInMemoryRepository(),
		leads:    leads.NewInMemoryRepository(),
		notifier: &captureNotifier{},
		registry: prometheus.NewRegistry(),
	}
	f.worker = NewWorker(f.repo, f.leads, f.notifier, nil).WithMetrics(metrics.NewBookingMetrics(f.registry))
	f.worker.now = func() time.Time { return base.Add(-30 * time.Minute) }
	return f
}

func (f *fixture) book(t *testing.T, leadID string, start time.Time, reminder *int) *appointments.Appointment {
	t.Helper()
	appt := &appointments.Appointment{
		ID:                    leadID + start.Format("1504"),
		WorkspaceID:           "ws-1",
		LeadID:                leadID,
		Resource:              availability.DefaultResource,
		Title:                 "Estimate",
		Type:                  appointments.TypeCall,
		StartAt:               start,
		EndAt:                 start.Add(30 * time.Minute),
		Timezone:              "UTC",
		Source:                appointments.SourceManual,
		Status:                appointments.StatusScheduled,
		ReminderMinutesBefore: reminder,
	}
	stored, _, err := f.repo.Reserve(context.Background(), appointments.Reservation{Appointment: appt, BusyFrom: appt.StartAt, BusyTo: appt.EndAt})
	require.NoError(t, err)
	return stored
}

func (f *fixture) lead(t *testing.T, name, email, phone string) string {
	t.Helper()
	lead, err := f.leads.Create(context.Background(), &leads.CreateLeadRequest{WorkspaceID: "ws-1", Name: name, Email: email, Phone: phone})
	require.NoError(t, err)
	return lead.ID
}

func minutes(n int) *int { return &n }

func TestProcessDueSendsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.lead(t, "Ana", "ana@example.com", "")
	f.book(t, ana, base, minutes(60))
	f.book(t, ana, base.Add(3*time.Hour), minutes(60)) // not due yet
	f.book(t, ana, base.Add(time.Hour), nil)           // no reminder

	sent, err := f.worker.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "ana@example.com", f.notifier.sent[0].LeadEmail)
	assert.Equal(t, "Ana", f.notifier.sent[0].LeadName)
	assert.Equal(t, base, f.notifier.sent[0].StartAt)

	sent, err = f.worker.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, f.notifier.sent, 1)
	assert.Equal(t, 1.0, f.reminderCount(t, "sent"))
}

// reminderCount reads leadcrm_reminders_sent_total{status}.
func (f *fixture) reminderCount(t *testing.T, status string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "leadcrm_reminders_sent_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelValue(m, "status") == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestProcessDueSkipsLeadsWithoutEmail(t *testing.T) {
	f := newFixture(t)
	bob := f.lead(t, "Bob", "", "5550101")
	f.book(t, bob, base, minutes(60))

	sent, err := f.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1.0, f.reminderCount(t, "skipped"))

	// Claimed, so it is not picked up again.
	due, err := f.repo.ListDueReminders(context.Background(), f.worker.now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestProcessDueSendFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	ana := f.lead(t, "Ana", "ana@example.com", "")
	f.book(t, ana, base, minutes(60))

	sent, err := f.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1.0, f.reminderCount(t, "failed"))

	f.notifier.err = nil
	sent, err = f.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestConcurrentWorkersSendOnce(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, "Ana", "ana@example.com", "")
	f.book(t, ana, base, minutes(60))
	f.book(t, ana, base.Add(time.Hour), minutes(120))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.worker.ProcessDue(context.Background())
		}()
	}
	wg.Wait()
	assert.Len(t, f.notifier.sent, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
