package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("ws-1")

	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.WorkingHours, 7)
	assert.False(t, cfg.Day(time.Sunday).Enabled)
	assert.False(t, cfg.Day(time.Saturday).Enabled)
	monday := cfg.Day(time.Monday)
	assert.True(t, monday.Enabled)
	assert.Equal(t, []TimeRange{{Start: "09:00", End: "17:00"}}, monday.Ranges)
	assert.Equal(t, 30*time.Minute, cfg.SlotDuration())
	assert.Equal(t, BookingModeDirect, cfg.ChatbotBooking.Mode)
	assert.False(t, cfg.ChatbotBooking.AllowCustomTime)
	assert.Equal(t, []IdentityField{FieldName, FieldPhone}, cfg.RequiredFieldsInOrder())
}

func TestValidateRejectsMalformedConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"six days", func(c *Config) { c.WorkingHours = c.WorkingHours[:6] }, "working_hours"},
		{"wrong day name", func(c *Config) { c.WorkingHours[1].Day = "tuesday" }, "working_hours[1].day"},
		{"unparsable time", func(c *Config) { c.WorkingHours[1].Ranges[0].Start = "9am" }, "working_hours[1].ranges[0]"},
		{"start after end", func(c *Config) {
			c.WorkingHours[1].Ranges = []TimeRange{{Start: "17:00", End: "09:00"}}
		}, "working_hours[1].ranges[0]"},
		{"start equals end", func(c *Config) {
			c.WorkingHours[1].Ranges = []TimeRange{{Start: "09:00", End: "09:00"}}
		}, "working_hours[1].ranges[0]"},
		{"overlapping ranges", func(c *Config) {
			c.WorkingHours[1].Ranges = []TimeRange{{Start: "09:00", End: "12:00"}, {Start: "11:00", End: "14:00"}}
		}, "working_hours[1].ranges[1]"},
		{"overlap declared out of order", func(c *Config) {
			c.WorkingHours[1].Ranges = []TimeRange{{Start: "13:00", End: "17:00"}, {Start: "09:00", End: "13:30"}}
		}, "working_hours[1].ranges[0]"},
		{"enabled without ranges", func(c *Config) { c.WorkingHours[1].Ranges = nil }, "working_hours[1].ranges"},
		{"zero slot duration", func(c *Config) { c.SlotDurationMinutes = 0 }, "slot_duration_minutes"},
		{"negative buffer", func(c *Config) { c.BufferAfterMinutes = -5 }, "buffer_after_minutes"},
		{"negative notice", func(c *Config) { c.MinimumNoticeHours = -1 }, "minimum_notice_hours"},
		{"max days zero", func(c *Config) { c.MaxDaysAhead = 0 }, "max_days_ahead"},
		{"unknown mode", func(c *Config) { c.ChatbotBooking.Mode = "auto" }, "chatbot_booking.mode"},
		{"unknown prompt style", func(c *Config) { c.ChatbotBooking.PromptStyle = "" }, "chatbot_booking.prompt_style"},
		{"unknown required field", func(c *Config) {
			c.ChatbotBooking.RequiredFields = []IdentityField{"email"}
		}, "chatbot_booking.required_fields[0]"},
		{"duplicate required field", func(c *Config) {
			c.ChatbotBooking.RequiredFields = []IdentityField{FieldName, FieldName}
		}, "chatbot_booking.required_fields[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("ws-1")
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Problems, tt.field)
		})
	}
}

func TestValidateAcceptsAdjacentRangesAndMidnightEnd(t *testing.T) {
	cfg := DefaultConfig("ws-1")
	cfg.WorkingHours[2].Ranges = []TimeRange{{Start: "13:00", End: "24:00"}, {Start: "09:00", End: "13:00"}}
	cfg.ChatbotBooking.RequiredFields = []IdentityField{}

	assert.NoError(t, cfg.Validate())
}

func TestRequiredFieldsInOrderIgnoresDeclarationOrder(t *testing.T) {
	cfg := DefaultConfig("ws-1")
	cfg.ChatbotBooking.RequiredFields = []IdentityField{FieldPhone, FieldName}

	assert.Equal(t, []IdentityField{FieldName, FieldPhone}, cfg.RequiredFieldsInOrder())
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig("ws-1")
	clone := cfg.Clone()
	clone.WorkingHours[1].Ranges[0].Start = "10:00"
	clone.ChatbotBooking.RequiredFields[0] = FieldPhone

	assert.Equal(t, "09:00", cfg.WorkingHours[1].Ranges[0].Start)
	assert.Equal(t, FieldName, cfg.ChatbotBooking.RequiredFields[0])
}
