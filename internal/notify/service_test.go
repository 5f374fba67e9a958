package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	msgs []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func testReminder() Reminder {
	start := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)
	return Reminder{
		WorkspaceID:   "ws-1",
		AppointmentID: "appt-1",
		LeadName:      "Ana",
		LeadEmail:     "ana@example.com",
		Title:         "Roof estimate",
		StartAt:       start,
		EndAt:         start.Add(30 * time.Minute),
		Timezone:      "America/New_York",
		Notes:         "Gate code <1234>",
	}
}

func TestSendAppointmentReminder(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, nil)

	require.NoError(t, svc.SendAppointmentReminder(context.Background(), testReminder()))
	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Reminder: Roof estimate on Mar 3", msg.Subject)
	assert.Contains(t, msg.Body, "Monday, March 3 at 10:00 AM EST")
	assert.Contains(t, msg.Body, "(30 minutes)")
	assert.Contains(t, msg.HTML, "Gate code &lt;1234&gt;")
}

func TestSendAppointmentReminderWithoutEmail(t *testing.T) {
	sender := &captureSender{}
	r := testReminder()
	r.LeadEmail = "  "

	err := NewService(sender, nil).SendAppointmentReminder(context.Background(), r)
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, sender.msgs)
}

func TestSendAppointmentReminderWrapsSendError(t *testing.T) {
	boom := errors.New("boom")
	err := NewService(&captureSender{err: boom}, nil).SendAppointmentReminder(context.Background(), testReminder())
	assert.ErrorIs(t, err, boom)
}

func TestSendAppointmentReminderWithoutSender(t *testing.T) {
	assert.NoError(t, NewService(nil, nil).SendAppointmentReminder(context.Background(), testReminder()))
}
