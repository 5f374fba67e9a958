package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/events"
	"github.com/wolfman30/leadcrm-booking/internal/observability/metrics"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

var tracer = otel.Tracer("leadcrm.internal.appointments")

// SlotRejectedError carries the engine's reason for refusing a slot.
type SlotRejectedError struct {
	Reason availability.Rejection
}

func (e *SlotRejectedError) Error() string {
	return fmt.Sprintf("appointments: slot rejected: %s", e.Reason)
}

func (e *SlotRejectedError) Is(target error) bool {
	if target == ErrSlotUnavailable {
		return true
	}
	return target == ErrSlotTaken && e.Reason == availability.RejectConflict
}

// Availability is what the service needs from the availability layer.
type Availability interface {
	Config(ctx context.Context, workspaceID string) (*scheduling.Config, error)
	Now() time.Time
	Invalidate(ctx context.Context, workspaceID string)
}

// Service owns appointment creation and lifecycle changes.
type Service struct {
	repo         Repository
	availability Availability
	publisher    events.Publisher
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
}

func NewService(repo Repository, avail Availability, publisher events.Publisher, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{repo: repo, availability: avail, publisher: publisher, metrics: m, logger: logger}
}

// ConfirmRequest books an engine slot for a lead.
type ConfirmRequest struct {
	WorkspaceID           string
	LeadID                string
	Slot                  availability.Slot
	Title                 string
	Type                  Type
	Notes                 string
	Source                Source
	ReminderMinutesBefore *int
	// IdempotencyKey makes retries return the first appointment. The
	// booking flow uses the negotiation id.
	IdempotencyKey string
}

// ConfirmResult reports whether this call created the appointment.
type ConfirmResult struct {
	Appointment *Appointment
	Created     bool
}

// Confirm re-validates the slot against the appointments visible inside the
// reservation lock and inserts it. Conflicts return ErrSlotTaken; other
// rule violations return *SlotRejectedError.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadcrm.workspace_id", req.WorkspaceID),
		attribute.String("leadcrm.lead_id", req.LeadID),
	)

	cfg, err := s.availability.Config(ctx, req.WorkspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	now := s.availability.Now()
	appt := s.newAppointment(req.WorkspaceID, req.LeadID, req.Title, req.Type, req.Notes, req.Source,
		req.ReminderMinutesBefore, req.Slot.Start, req.Slot.End, timezoneOr(req.Slot.Timezone, cfg.Timezone))
	appt.IdempotencyKey = req.IdempotencyKey
	slot := availability.Slot{Start: appt.StartAt, End: appt.EndAt, Timezone: appt.Timezone}

	res := Reservation{
		Appointment: appt,
		BusyFrom:    appt.StartAt.Add(-cfg.BufferAfter()),
		BusyTo:      appt.EndAt.Add(cfg.BufferBefore()),
		Verify: func(busy []availability.Busy) error {
			if reason := availability.CheckSlot(cfg, slot, busy, now); reason != availability.RejectionNone {
				return &SlotRejectedError{Reason: reason}
			}
			return nil
		},
	}
	return s.reserve(ctx, res)
}

// CreateRequest is the manual form. Staff may book outside working hours,
// but never on top of another appointment or its buffers.
type CreateRequest struct {
	WorkspaceID           string    `json:"-"`
	LeadID                string    `json:"lead_id"`
	Title                 string    `json:"title"`
	Type                  Type      `json:"appointment_type"`
	StartAt               time.Time `json:"start_at"`
	DurationMinutes       int       `json:"duration_minutes"`
	Timezone              string    `json:"timezone"`
	Notes                 string    `json:"notes"`
	Source                Source    `json:"source"`
	ReminderMinutesBefore *int      `json:"reminder_minutes_before"`
	IdempotencyKey        string    `json:"idempotency_key"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.workspace_id", req.WorkspaceID))

	cfg, err := s.availability.Config(ctx, req.WorkspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = cfg.SlotDurationMinutes
	}
	if duration < 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalid)
	}
	source := req.Source
	if source == "" {
		source = SourceManual
	}
	start := req.StartAt
	end := start.Add(time.Duration(duration) * time.Minute)
	appt := s.newAppointment(req.WorkspaceID, req.LeadID, req.Title, req.Type, req.Notes, source,
		req.ReminderMinutesBefore, start, end, timezoneOr(req.Timezone, cfg.Timezone))
	appt.IdempotencyKey = req.IdempotencyKey

	res := Reservation{
		Appointment: appt,
		BusyFrom:    appt.StartAt.Add(-cfg.BufferAfter()),
		BusyTo:      appt.EndAt.Add(cfg.BufferBefore()),
		Verify:      conflictOnly(cfg, appt.StartAt, appt.EndAt),
	}
	return s.reserve(ctx, res)
}

func conflictOnly(cfg *scheduling.Config, start, end time.Time) VerifyFunc {
	return func(busy []availability.Busy) error {
		if availability.HasConflict(cfg, availability.Slot{Start: start, End: end}, busy) {
			return ErrSlotTaken
		}
		return nil
	}
}

func (s *Service) reserve(ctx context.Context, res Reservation) (*ConfirmResult, error) {
	appt, created, err := s.repo.Reserve(ctx, res)
	switch {
	case errors.Is(err, ErrSlotTaken):
		s.metrics.ObserveConfirmation("slot_taken")
		s.logger.Info("appointment slot taken", "workspace_id", res.Appointment.WorkspaceID,
			"lead_id", res.Appointment.LeadID, "start_at", res.Appointment.StartAt)
		return nil, err
	case errors.Is(err, ErrSlotUnavailable):
		s.metrics.ObserveConfirmation("rejected")
		return nil, err
	case err != nil:
		s.metrics.ObserveConfirmation("error")
		return nil, err
	}

	if !created {
		s.metrics.ObserveConfirmation("replayed")
		s.logger.Info("appointment confirmation replayed", "workspace_id", appt.WorkspaceID,
			"appointment_id", appt.ID, "idempotency_key", appt.IdempotencyKey)
		return &ConfirmResult{Appointment: appt, Created: false}, nil
	}

	s.metrics.ObserveConfirmation("created")
	s.availability.Invalidate(ctx, appt.WorkspaceID)
	s.publish(ctx, appt, events.TypeAppointmentScheduled, "")
	s.logger.Info("appointment scheduled", "workspace_id", appt.WorkspaceID, "appointment_id", appt.ID,
		"lead_id", appt.LeadID, "source", appt.Source, "start_at", appt.StartAt)
	return &ConfirmResult{Appointment: appt, Created: true}, nil
}

func (s *Service) newAppointment(workspaceID, leadID, title string, typ Type, notes string, source Source,
	reminder *int, start, end time.Time, timezone string) *Appointment {
	if typ == "" {
		typ = TypeCall
	}
	if strings.TrimSpace(title) == "" {
		title = "Appointment"
	}
	return &Appointment{
		ID:                    uuid.NewString(),
		WorkspaceID:           workspaceID,
		LeadID:                leadID,
		Resource:              availability.DefaultResource,
		Title:                 title,
		Type:                  typ,
		StartAt:               start.UTC(),
		EndAt:                 end.UTC(),
		Timezone:              timezone,
		Notes:                 notes,
		Source:                source,
		ReminderMinutesBefore: reminder,
		Status:                StatusScheduled,
	}
}

func timezoneOr(tz, fallback string) string {
	if strings.TrimSpace(tz) != "" {
		return tz
	}
	if fallback != "" {
		return fallback
	}
	return "UTC"
}

func (s *Service) Get(ctx context.Context, workspaceID, id string) (*Appointment, error) {
	return s.repo.Get(ctx, workspaceID, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Complete(ctx context.Context, workspaceID, id string) (*Appointment, error) {
	return s.transition(ctx, workspaceID, id, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, workspaceID, id string) (*Appointment, error) {
	return s.transition(ctx, workspaceID, id, StatusCancelled)
}

func (s *Service) MarkNoShow(ctx context.Context, workspaceID, id string) (*Appointment, error) {
	return s.transition(ctx, workspaceID, id, StatusNoShow)
}

func (s *Service) transition(ctx context.Context, workspaceID, id string, to Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadcrm.workspace_id", workspaceID),
		attribute.String("leadcrm.appointment_id", id),
		attribute.String("leadcrm.status", string(to)),
	)

	current, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}
	updated, err := s.repo.UpdateStatus(ctx, workspaceID, id, current.Status, to)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.availability.Invalidate(ctx, workspaceID)
	s.publish(ctx, updated, events.TypeAppointmentStatusChanged, current.Status)
	s.logger.Info("appointment status changed", "workspace_id", workspaceID, "appointment_id", id,
		"from", current.Status, "to", to)
	return updated, nil
}

// RescheduleRequest moves a scheduled appointment. A zero DurationMinutes
// keeps the current length.
type RescheduleRequest struct {
	WorkspaceID     string
	ID              string
	StartAt         time.Time
	DurationMinutes int
}

func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadcrm.workspace_id", req.WorkspaceID),
		attribute.String("leadcrm.appointment_id", req.ID),
	)

	current, err := s.repo.Get(ctx, req.WorkspaceID, req.ID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, ErrNotEditable
	}
	cfg, err := s.availability.Config(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	duration := time.Duration(req.DurationMinutes) * time.Minute
	if req.DurationMinutes == 0 {
		duration = current.EndAt.Sub(current.StartAt)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalid)
	}
	start := req.StartAt.UTC()
	end := start.Add(duration)

	updated, err := s.repo.Reschedule(ctx, Move{
		WorkspaceID: req.WorkspaceID,
		ID:          req.ID,
		StartAt:     start,
		EndAt:       end,
		BusyFrom:    start.Add(-cfg.BufferAfter()),
		BusyTo:      end.Add(cfg.BufferBefore()),
		Verify:      conflictOnly(cfg, start, end),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.availability.Invalidate(ctx, req.WorkspaceID)
	s.publish(ctx, updated, events.TypeAppointmentRescheduled, "")
	s.logger.Info("appointment rescheduled", "workspace_id", req.WorkspaceID, "appointment_id", req.ID,
		"start_at", start)
	return updated, nil
}

func (s *Service) Update(ctx context.Context, workspaceID, id string, details Details) (*Appointment, error) {
	return s.repo.UpdateDetails(ctx, workspaceID, id, details)
}

func (s *Service) publish(ctx context.Context, appt *Appointment, eventType string, previous Status) {
	payload := events.AppointmentEvent{
		AppointmentID:  appt.ID,
		WorkspaceID:    appt.WorkspaceID,
		LeadID:         appt.LeadID,
		Status:         string(appt.Status),
		PreviousStatus: string(previous),
		Source:         string(appt.Source),
		StartAt:        appt.StartAt,
		EndAt:          appt.EndAt,
		Timezone:       appt.Timezone,
	}
	if err := s.publisher.Publish(ctx, appt.WorkspaceID, eventType, payload); err != nil {
		s.logger.Error("failed to publish appointment event", "workspace_id", appt.WorkspaceID,
			"appointment_id", appt.ID, "type", eventType, "error", err)
	}
}
