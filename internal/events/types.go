package events

import (
	"context"
	"time"
)

const (
	TypeAppointmentScheduled     = "appointment.scheduled"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypeAppointmentRescheduled   = "appointment.rescheduled"
	TypeBookingDeclined          = "booking.declined"
)

// Publisher records a domain event for later delivery.
type Publisher interface {
	Publish(ctx context.Context, workspaceID, eventType string, payload any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

type AppointmentEvent struct {
	AppointmentID  string    `json:"appointment_id"`
	WorkspaceID    string    `json:"workspace_id"`
	LeadID         string    `json:"lead_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Source         string    `json:"source"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	Timezone       string    `json:"timezone"`
}

type BookingDeclinedEvent struct {
	NegotiationID string    `json:"negotiation_id"`
	WorkspaceID   string    `json:"workspace_id"`
	LeadID        string    `json:"lead_id"`
	FromMode      string    `json:"from_mode"`
	DeclinedAt    time.Time `json:"declined_at"`
}
