// Package reminders emails leads ahead of their scheduled appointments.
package reminders

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/leadcrm-booking/internal/appointments"
	"github.com/wolfman30/leadcrm-booking/internal/leads"
	"github.com/wolfman30/leadcrm-booking/internal/notify"
	"github.com/wolfman30/leadcrm-booking/internal/observability/metrics"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

var tracer = otel.Tracer("leadcrm.internal.reminders")

// DueStore lists and claims due reminders; appointments.Repository implements it.
type DueStore interface {
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]*appointments.Appointment, error)
	MarkReminderSent(ctx context.Context, workspaceID, id string, at time.Time) (bool, error)
}

type LeadLookup interface {
	GetByID(ctx context.Context, workspaceID, id string) (*leads.Lead, error)
}

type Notifier interface {
	SendAppointmentReminder(ctx context.Context, r notify.Reminder) error
}

// Worker polls for appointments whose reminder time has passed. Each
// reminder is claimed before it is sent, so concurrent workers never
// send twice; a failed send is logged and not retried.
type Worker struct {
	store     DueStore
	leads     LeadLookup
	notifier  Notifier
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
	batchSize int
	now       func() time.Time
}

func NewWorker(store DueStore, leadLookup LeadLookup, notifier Notifier, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		store:     store,
		leads:     leadLookup,
		notifier:  notifier,
		logger:    logger,
		batchSize: 50,
		now:       time.Now,
	}
}

func (w *Worker) WithMetrics(m *metrics.BookingMetrics) *Worker {
	w.metrics = m
	return w
}

func (w *Worker) WithBatchSize(size int) *Worker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Run processes due reminders every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("reminder pass failed", "error", err)
			}
		}
	}
}

// ProcessDue handles one batch and returns how many reminders were sent.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "reminders.process_due")
	defer span.End()

	now := w.now().UTC()
	due, err := w.store.ListDueReminders(ctx, now, w.batchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("leadcrm.due_count", len(due)))

	sent := 0
	for _, appt := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		claimed, err := w.store.MarkReminderSent(ctx, appt.WorkspaceID, appt.ID, now)
		if err != nil {
			w.logger.Error("failed to claim reminder", "error", err, "appointment_id", appt.ID)
			continue
		}
		if !claimed {
			continue
		}
		if w.send(ctx, appt) {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) send(ctx context.Context, appt *appointments.Appointment) bool {
	var name, email string
	if w.leads != nil {
		lead, err := w.leads.GetByID(ctx, appt.WorkspaceID, appt.LeadID)
		if err != nil {
			w.metrics.ObserveReminder("failed")
			w.logger.Error("failed to load lead for reminder", "error", err,
				"appointment_id", appt.ID, "lead_id", appt.LeadID)
			return false
		}
		name, email = lead.Name, lead.Email
	}

	err := w.notifier.SendAppointmentReminder(ctx, notify.Reminder{
		WorkspaceID:   appt.WorkspaceID,
		AppointmentID: appt.ID,
		LeadName:      name,
		LeadEmail:     email,
		Title:         appt.Title,
		StartAt:       appt.StartAt,
		EndAt:         appt.EndAt,
		Timezone:      appt.Timezone,
		Notes:         appt.Notes,
	})
	switch {
	case errors.Is(err, notify.ErrNoRecipient):
		w.metrics.ObserveReminder("skipped")
		w.logger.Debug("lead has no email, reminder skipped", "appointment_id", appt.ID, "lead_id", appt.LeadID)
		return false
	case err != nil:
		w.metrics.ObserveReminder("failed")
		w.logger.Error("reminder send failed", "error", err, "appointment_id", appt.ID)
		return false
	}
	w.metrics.ObserveReminder("sent")
	return true
}
