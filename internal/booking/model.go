// Package booking runs one booking negotiation per lead: offer, slot list,
// identity collection, custom-time proposals and confirmation.
package booking

import (
	"errors"
	"time"

	"github.com/wolfman30/leadcrm-booking/internal/appointments"
	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
)

var (
	ErrNotFound           = errors.New("booking: negotiation not found")
	ErrLeadNotFound       = errors.New("booking: lead not found")
	ErrInvalidTransition  = errors.New("booking: operation not allowed in current mode")
	ErrBookingDisabled    = errors.New("booking: chatbot booking is disabled for this workspace")
	ErrCustomTimeDisabled = errors.New("booking: custom times are not enabled for this workspace")
	ErrInvalidInput       = errors.New("booking: invalid input")
	ErrVersionConflict    = errors.New("booking: negotiation was modified concurrently")
)

// Mode is the negotiation state shown to the caller.
type Mode string

const (
	ModeOffer              Mode = "offer"
	ModeSlots              Mode = "slots"
	ModeAwaitingName       Mode = "awaiting_name"
	ModeAwaitingPhone      Mode = "awaiting_phone"
	ModeAwaitingCustomTime Mode = "awaiting_custom_time"
	ModeConfirmed          Mode = "confirmed"
	ModeDeclined           Mode = "declined"
	ModeNotAvailable       Mode = "not_available"
)

// Terminal reports whether the mode ends the negotiation. not_available
// may still be restarted.
func (m Mode) Terminal() bool {
	return m == ModeConfirmed || m == ModeDeclined || m == ModeNotAvailable
}

// Reasons attached to a slots payload after a failed attempt. Custom-time
// rejections use the availability rejection code instead.
const (
	ReasonSlotTaken       = "slot_taken"
	ReasonSlotUnavailable = "slot_unavailable"
)

// Identity holds what the lead has told us about themselves.
type Identity struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (i Identity) value(field scheduling.IdentityField) string {
	switch field {
	case scheduling.FieldName:
		return i.Name
	case scheduling.FieldPhone:
		return i.Phone
	}
	return ""
}

// Negotiation is the persisted state of one booking conversation.
type Negotiation struct {
	ID            string                    `json:"id"`
	WorkspaceID   string                    `json:"workspace_id"`
	LeadID        string                    `json:"lead_id"`
	Source        appointments.Source       `json:"source"`
	Mode          Mode                      `json:"mode"`
	OfferedSlots  []availability.Slot       `json:"offered_slots,omitempty"`
	TentativeSlot *availability.Slot        `json:"tentative_slot,omitempty"`
	Identity      Identity                  `json:"identity"`
	Reason        string                    `json:"reason,omitempty"`
	Appointment   *appointments.Appointment `json:"appointment,omitempty"`
	Version       int64                     `json:"version"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

func (n *Negotiation) clone() *Negotiation {
	out := *n
	out.OfferedSlots = append([]availability.Slot(nil), n.OfferedSlots...)
	if n.TentativeSlot != nil {
		s := *n.TentativeSlot
		out.TentativeSlot = &s
	}
	if n.Appointment != nil {
		a := *n.Appointment
		out.Appointment = &a
	}
	return &out
}

// Payload is the caller-facing view of a negotiation. Mode is authoritative.
type Payload struct {
	NegotiationID string                    `json:"negotiation_id"`
	LeadID        string                    `json:"lead_id"`
	Mode          Mode                      `json:"mode"`
	Slots         []availability.Slot       `json:"slots,omitempty"`
	ConfirmedSlot *availability.Slot        `json:"confirmed_slot,omitempty"`
	Appointment   *appointments.Appointment `json:"appointment,omitempty"`
	AwaitingField scheduling.IdentityField  `json:"awaiting_field,omitempty"`
	Reason        string                    `json:"reason,omitempty"`
	Prompt        string                    `json:"prompt,omitempty"`
}

func (n *Negotiation) payload(style scheduling.PromptStyle) *Payload {
	p := &Payload{
		NegotiationID: n.ID,
		LeadID:        n.LeadID,
		Mode:          n.Mode,
		Reason:        n.Reason,
	}
	switch n.Mode {
	case ModeSlots:
		p.Slots = append([]availability.Slot{}, n.OfferedSlots...)
	case ModeAwaitingName:
		p.AwaitingField = scheduling.FieldName
	case ModeAwaitingPhone:
		p.AwaitingField = scheduling.FieldPhone
	case ModeConfirmed:
		if n.Appointment != nil {
			appt := *n.Appointment
			p.Appointment = &appt
			p.ConfirmedSlot = &availability.Slot{Start: appt.StartAt, End: appt.EndAt, Timezone: appt.Timezone}
		}
	}
	p.Prompt = promptFor(style, p)
	return p
}
