package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// ErrNoRecipient means the lead has no email address on file.
var ErrNoRecipient = errors.New("notify: lead has no email address")

// Reminder is everything needed to remind a lead about an appointment.
type Reminder struct {
	WorkspaceID   string
	AppointmentID string
	LeadName      string
	LeadEmail     string
	Title         string
	StartAt       time.Time
	EndAt         time.Time
	Timezone      string
	Notes         string
}

// Service renders and sends lead-facing notifications.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// SendAppointmentReminder emails the lead. Times are shown in the
// appointment's timezone.
func (s *Service) SendAppointmentReminder(ctx context.Context, r Reminder) error {
	to := strings.TrimSpace(r.LeadEmail)
	if to == "" {
		return ErrNoRecipient
	}
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping reminder", "appointment_id", r.AppointmentID)
		return nil
	}

	loc, err := time.LoadLocation(r.Timezone)
	if err != nil || r.Timezone == "" {
		loc = time.UTC
	}
	when := r.StartAt.In(loc).Format("Monday, January 2 at 3:04 PM MST")
	title := r.Title
	if title == "" {
		title = "Your appointment"
	}
	name := r.LeadName
	if name == "" {
		name = "there"
	}

	subject := fmt.Sprintf("Reminder: %s on %s", title, r.StartAt.In(loc).Format("Jan 2"))
	body := fmt.Sprintf("Hi %s,\n\nThis is a reminder of \"%s\" on %s (%d minutes).\n",
		name, title, when, int(r.EndAt.Sub(r.StartAt).Minutes()))
	if r.Notes != "" {
		body += "\nNotes: " + r.Notes + "\n"
	}
	body += "\nReply to this email if you need to change the time.\n"

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<p>Hi %s,</p>
<p>This is a reminder of <strong>%s</strong> on <strong>%s</strong>.</p>
%s<p style="color: #6b7280; font-size: 12px;">Reply to this email if you need to change the time.</p>
</div>`, html.EscapeString(name), html.EscapeString(title), html.EscapeString(when), notesHTML(r.Notes))

	if err := s.email.Send(ctx, EmailMessage{
		To:      to,
		ToName:  r.LeadName,
		Subject: subject,
		Body:    body,
		HTML:    htmlBody,
	}); err != nil {
		return fmt.Errorf("notify: send reminder: %w", err)
	}
	s.logger.Info("notify: appointment reminder sent", "workspace_id", r.WorkspaceID, "appointment_id", r.AppointmentID)
	return nil
}

func notesHTML(notes string) string {
	if notes == "" {
		return ""
	}
	return fmt.Sprintf("<p><strong>Notes:</strong> %s</p>\n", html.EscapeString(notes))
}
