// Package appointments persists booked appointments and guards the
// check-and-reserve step against concurrent confirmations.
package appointments

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("appointments: not found")
	ErrSlotTaken         = errors.New("appointments: slot taken")
	ErrSlotUnavailable   = errors.New("appointments: slot unavailable")
	ErrInvalidTransition = errors.New("appointments: invalid status transition")
	ErrNotEditable       = errors.New("appointments: only scheduled appointments can be edited")
	ErrInvalid           = errors.New("appointments: invalid appointment")
)

// Type is the kind of meeting.
type Type string

const (
	TypeCall      Type = "call"
	TypeSiteVisit Type = "site_visit"
	TypeMeeting   Type = "meeting"
	TypeFollowUp  Type = "follow_up"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCall, TypeSiteVisit, TypeMeeting, TypeFollowUp:
		return true
	}
	return false
}

// Source records where an appointment came from. It never changes.
type Source string

const (
	SourceManual     Source = "manual"
	SourceChatbot    Source = "chatbot"
	SourceInbox      Source = "inbox"
	SourceSimulation Source = "simulation"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceChatbot, SourceInbox, SourceSimulation:
		return true
	}
	return false
}

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition allows only scheduled -> completed | cancelled | no_show.
func (s Status) CanTransition(to Status) bool {
	if s != StatusScheduled {
		return false
	}
	return to == StatusCompleted || to == StatusCancelled || to == StatusNoShow
}

// Appointment is a booked meeting with a lead. StartAt and EndAt are stored
// in UTC; Timezone is kept for display.
type Appointment struct {
	ID                    string     `json:"id"`
	WorkspaceID           string     `json:"workspace_id"`
	LeadID                string     `json:"lead_id"`
	Resource              string     `json:"resource"`
	Title                 string     `json:"title"`
	Type                  Type       `json:"appointment_type"`
	StartAt               time.Time  `json:"start_at"`
	EndAt                 time.Time  `json:"end_at"`
	Timezone              string     `json:"timezone"`
	Notes                 string     `json:"notes,omitempty"`
	Source                Source     `json:"source"`
	ReminderMinutesBefore *int       `json:"reminder_minutes_before"`
	Status                Status     `json:"status"`
	IdempotencyKey        string     `json:"idempotency_key,omitempty"`
	ReminderSentAt        *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// DurationMinutes is EndAt - StartAt in whole minutes.
func (a *Appointment) DurationMinutes() int {
	return int(a.EndAt.Sub(a.StartAt) / time.Minute)
}

// ReminderDueAt returns when the reminder should go out, if one is configured.
func (a *Appointment) ReminderDueAt() (time.Time, bool) {
	if a.ReminderMinutesBefore == nil {
		return time.Time{}, false
	}
	return a.StartAt.Add(-time.Duration(*a.ReminderMinutesBefore) * time.Minute), true
}

func (a *Appointment) clone() *Appointment {
	out := *a
	if a.ReminderMinutesBefore != nil {
		v := *a.ReminderMinutesBefore
		out.ReminderMinutesBefore = &v
	}
	if a.ReminderSentAt != nil {
		v := *a.ReminderSentAt
		out.ReminderSentAt = &v
	}
	return &out
}

func (a *Appointment) validate() error {
	var problems []string
	if strings.TrimSpace(a.WorkspaceID) == "" {
		problems = append(problems, "workspace_id is required")
	}
	if strings.TrimSpace(a.LeadID) == "" {
		problems = append(problems, "lead_id is required")
	}
	if !a.EndAt.After(a.StartAt) {
		problems = append(problems, "end_at must be after start_at")
	}
	if !a.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown appointment_type %q", a.Type))
	}
	if !a.Source.Valid() {
		problems = append(problems, fmt.Sprintf("unknown source %q", a.Source))
	}
	if a.ReminderMinutesBefore != nil && *a.ReminderMinutesBefore < 0 {
		problems = append(problems, "reminder_minutes_before must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Details are the fields editable while an appointment is scheduled.
// Nil pointers leave the field unchanged.
type Details struct {
	Title                 *string `json:"title"`
	Type                  *Type   `json:"appointment_type"`
	Notes                 *string `json:"notes"`
	ReminderMinutesBefore *int    `json:"reminder_minutes_before"`
	ClearReminder         bool    `json:"clear_reminder"`
}

func (d Details) apply(a *Appointment) error {
	if d.Title != nil {
		a.Title = *d.Title
	}
	if d.Type != nil {
		if !d.Type.Valid() {
			return fmt.Errorf("%w: unknown appointment_type %q", ErrInvalid, *d.Type)
		}
		a.Type = *d.Type
	}
	if d.Notes != nil {
		a.Notes = *d.Notes
	}
	if d.ClearReminder {
		a.ReminderMinutesBefore = nil
		a.ReminderSentAt = nil
	} else if d.ReminderMinutesBefore != nil {
		if *d.ReminderMinutesBefore < 0 {
			return fmt.Errorf("%w: reminder_minutes_before must not be negative", ErrInvalid)
		}
		v := *d.ReminderMinutesBefore
		a.ReminderMinutesBefore = &v
		a.ReminderSentAt = nil
	}
	return nil
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	WorkspaceID string
	LeadID      string
	Status      Status
	From        *time.Time
	To          *time.Time
	Limit       int
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return 100
	}
	return f.Limit
}

func (f ListFilter) matches(a *Appointment) bool {
	if a.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.LeadID != "" && a.LeadID != f.LeadID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.From != nil && !a.EndAt.After(*f.From) {
		return false
	}
	if f.To != nil && !a.StartAt.Before(*f.To) {
		return false
	}
	return true
}
