// Package scheduling holds the per-workspace availability configuration:
// working hours, slot sizing, buffers, notice and the chatbot booking policy.
package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is matched (errors.Is) by every *ValidationError.
var ErrInvalidConfig = errors.New("scheduling: invalid config")

// BookingMode gates whether an automated agent may offer booking.
type BookingMode string

const (
	BookingModeOff           BookingMode = "off"
	BookingModeManualRequest BookingMode = "manual_request"
	BookingModeDirect        BookingMode = "direct_booking"
)

// PromptStyle tells the conversation renderer how to phrase booking prompts.
type PromptStyle string

const (
	PromptStyleConcise  PromptStyle = "concise"
	PromptStyleFriendly PromptStyle = "friendly"
	PromptStyleFormal   PromptStyle = "formal"
)

// IdentityField is a lead attribute that may be required before booking.
type IdentityField string

const (
	FieldName  IdentityField = "name"
	FieldPhone IdentityField = "phone"
)

// identityFieldOrder is the order in which missing fields are requested.
var identityFieldOrder = []IdentityField{FieldName, FieldPhone}

// TimeRange is a wall-clock interval within one day, "HH:MM" on both ends.
// End may be "24:00" to mean midnight at the end of the day.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkingDay is the configuration for one weekday.
type WorkingDay struct {
	Day     string      `json:"day"`
	Enabled bool        `json:"enabled"`
	Ranges  []TimeRange `json:"ranges"`
}

// ChatbotBooking controls automated booking.
type ChatbotBooking struct {
	Mode            BookingMode     `json:"mode"`
	PromptStyle     PromptStyle     `json:"prompt_style"`
	RequiredFields  []IdentityField `json:"required_fields"`
	AllowCustomTime bool            `json:"allow_custom_time"`
}

// Config is the singleton scheduling configuration of a workspace.
// WorkingHours is indexed by time.Weekday (0 = Sunday) and always has 7 entries.
type Config struct {
	WorkspaceID         string         `json:"workspace_id"`
	Timezone            string         `json:"timezone"`
	WorkingHours        []WorkingDay   `json:"working_hours"`
	SlotDurationMinutes int            `json:"slot_duration_minutes"`
	BufferBeforeMinutes int            `json:"buffer_before_minutes"`
	BufferAfterMinutes  int            `json:"buffer_after_minutes"`
	MinimumNoticeHours  int            `json:"minimum_notice_hours"`
	MaxDaysAhead        int            `json:"max_days_ahead"`
	ChatbotBooking      ChatbotBooking `json:"chatbot_booking"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// DefaultConfig returns Mon–Fri 09:00–17:00 with 30 minute slots.
func DefaultConfig(workspaceID string) *Config {
	days := make([]WorkingDay, 7)
	for i := range days {
		wd := time.Weekday(i)
		days[i] = WorkingDay{Day: dayName(wd), Ranges: []TimeRange{}}
		if wd != time.Saturday && wd != time.Sunday {
			days[i].Enabled = true
			days[i].Ranges = []TimeRange{{Start: "09:00", End: "17:00"}}
		}
	}
	return &Config{
		WorkspaceID:         workspaceID,
		Timezone:            "UTC",
		WorkingHours:        days,
		SlotDurationMinutes: 30,
		MinimumNoticeHours:  1,
		MaxDaysAhead:        30,
		ChatbotBooking: ChatbotBooking{
			Mode:           BookingModeDirect,
			PromptStyle:    PromptStyleFriendly,
			RequiredFields: []IdentityField{FieldName, FieldPhone},
		},
	}
}

func dayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.WorkingHours = make([]WorkingDay, len(c.WorkingHours))
	for i, d := range c.WorkingHours {
		out.WorkingHours[i] = d
		if d.Ranges != nil {
			out.WorkingHours[i].Ranges = append([]TimeRange{}, d.Ranges...)
		}
	}
	if c.ChatbotBooking.RequiredFields != nil {
		out.ChatbotBooking.RequiredFields = append([]IdentityField{}, c.ChatbotBooking.RequiredFields...)
	}
	return &out
}

// Location resolves the workspace timezone.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Day returns the configuration for a weekday; a missing entry reads as closed.
func (c *Config) Day(wd time.Weekday) WorkingDay {
	if int(wd) < len(c.WorkingHours) {
		return c.WorkingHours[wd]
	}
	return WorkingDay{Day: dayName(wd)}
}

// HasEnabledDay reports whether at least one day can produce slots.
func (c *Config) HasEnabledDay() bool {
	if c == nil {
		return false
	}
	for _, d := range c.WorkingHours {
		if d.Enabled && len(d.Ranges) > 0 {
			return true
		}
	}
	return false
}

func (c *Config) SlotDuration() time.Duration {
	return time.Duration(c.SlotDurationMinutes) * time.Minute
}

func (c *Config) BufferBefore() time.Duration {
	return time.Duration(c.BufferBeforeMinutes) * time.Minute
}

func (c *Config) BufferAfter() time.Duration {
	return time.Duration(c.BufferAfterMinutes) * time.Minute
}

func (c *Config) MinimumNotice() time.Duration {
	return time.Duration(c.MinimumNoticeHours) * time.Hour
}

// Horizon is how far ahead a slot may end, measured from now.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.MaxDaysAhead) * 24 * time.Hour
}

// RequiresField reports whether the chatbot policy requires the field.
func (c *Config) RequiresField(field IdentityField) bool {
	for _, f := range c.ChatbotBooking.RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// RequiredFieldsInOrder returns the configured fields in prompting order.
func (c *Config) RequiredFieldsInOrder() []IdentityField {
	var out []IdentityField
	for _, f := range identityFieldOrder {
		if c.RequiresField(f) {
			out = append(out, f)
		}
	}
	return out
}

// Minutes returns the range bounds as minutes since local midnight.
func (r TimeRange) Minutes() (start, end int, err error) {
	start, err = parseClock(r.Start, false)
	if err != nil {
		return 0, 0, err
	}
	end, err = parseClock(r.End, true)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseClock(value string, allowMidnightEnd bool) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", value)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || m < 0 || m > 59 || h < 0 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", value)
	}
	if h == 24 && m == 0 && allowMidnightEnd {
		return 24 * 60, nil
	}
	if h > 23 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", value)
	}
	return h*60 + m, nil
}

// ValidationError lists every problem found in a config, keyed by field path.
type ValidationError struct {
	Problems map[string]string `json:"fields"`
}

func (e *ValidationError) add(field, msg string) {
	if e.Problems == nil {
		e.Problems = make(map[string]string)
	}
	if _, exists := e.Problems[field]; !exists {
		e.Problems[field] = msg
	}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Problems))
	for k := range e.Problems {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Problems[k])
	}
	return "scheduling: invalid config: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks the config and returns a *ValidationError when malformed.
func (c *Config) Validate() error {
	verr := &ValidationError{}
	if c == nil {
		verr.add("config", "required")
		return verr
	}
	if strings.TrimSpace(c.WorkspaceID) == "" {
		verr.add("workspace_id", "required")
	}
	if _, err := c.Location(); err != nil {
		verr.add("timezone", "unknown IANA timezone")
	}
	if len(c.WorkingHours) != 7 {
		verr.add("working_hours", fmt.Sprintf("must contain 7 days, got %d", len(c.WorkingHours)))
	} else {
		for i, day := range c.WorkingHours {
			validateDay(verr, i, day)
		}
	}
	if c.SlotDurationMinutes <= 0 {
		verr.add("slot_duration_minutes", "must be positive")
	}
	if c.BufferBeforeMinutes < 0 {
		verr.add("buffer_before_minutes", "must not be negative")
	}
	if c.BufferAfterMinutes < 0 {
		verr.add("buffer_after_minutes", "must not be negative")
	}
	if c.MinimumNoticeHours < 0 {
		verr.add("minimum_notice_hours", "must not be negative")
	}
	if c.MaxDaysAhead < 1 {
		verr.add("max_days_ahead", "must be at least 1")
	}
	validateChatbot(verr, c.ChatbotBooking)

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

func validateDay(verr *ValidationError, index int, day WorkingDay) {
	prefix := fmt.Sprintf("working_hours[%d]", index)
	if want := dayName(time.Weekday(index)); day.Day != want {
		verr.add(prefix+".day", fmt.Sprintf("must be %q", want))
	}
	if day.Enabled && len(day.Ranges) == 0 {
		verr.add(prefix+".ranges", "enabled day needs at least one range")
	}

	type bounds struct{ start, end, idx int }
	parsed := make([]bounds, 0, len(day.Ranges))
	for j, r := range day.Ranges {
		field := fmt.Sprintf("%s.ranges[%d]", prefix, j)
		start, end, err := r.Minutes()
		if err != nil {
			verr.add(field, err.Error())
			continue
		}
		if start >= end {
			verr.add(field, "start must be before end")
			continue
		}
		parsed = append(parsed, bounds{start, end, j})
	}
	sort.Slice(parsed, func(a, b int) bool { return parsed[a].start < parsed[b].start })
	for k := 1; k < len(parsed); k++ {
		if parsed[k].start < parsed[k-1].end {
			verr.add(fmt.Sprintf("%s.ranges[%d]", prefix, parsed[k].idx),
				fmt.Sprintf("overlaps ranges[%d]", parsed[k-1].idx))
		}
	}
}

func validateChatbot(verr *ValidationError, cb ChatbotBooking) {
	switch cb.Mode {
	case BookingModeOff, BookingModeManualRequest, BookingModeDirect:
	default:
		verr.add("chatbot_booking.mode", fmt.Sprintf("unknown mode %q", cb.Mode))
	}
	switch cb.PromptStyle {
	case PromptStyleConcise, PromptStyleFriendly, PromptStyleFormal:
	default:
		verr.add("chatbot_booking.prompt_style", fmt.Sprintf("unknown prompt style %q", cb.PromptStyle))
	}
	seen := make(map[IdentityField]struct{}, len(cb.RequiredFields))
	for i, f := range cb.RequiredFields {
		field := fmt.Sprintf("chatbot_booking.required_fields[%d]", i)
		if f != FieldName && f != FieldPhone {
			verr.add(field, fmt.Sprintf("unknown field %q", f))
			continue
		}
		if _, dup := seen[f]; dup {
			verr.add(field, fmt.Sprintf("duplicate field %q", f))
		}
		seen[f] = struct{}{}
	}
}
