package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
)

// 2025-03-03 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func weekdayConfig() *scheduling.Config {
	cfg := scheduling.DefaultConfig("ws-1")
	cfg.MinimumNoticeHours = 1
	cfg.MaxDaysAhead = 30
	return cfg
}

func starts(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.Format("Mon 15:04"))
	}
	return out
}

func mondayWindow() Window {
	return Window{From: at(3, 0, 0), To: at(4, 0, 0)}
}

func TestComputeExcludesBookedSlot(t *testing.T) {
	cfg := weekdayConfig()
	busy := []Busy{{Start: at(3, 10, 0), End: at(3, 10, 30)}}

	slots := ComputeAvailableSlots(cfg, mondayWindow(), busy, at(2, 12, 0))

	want := []string{"Mon 09:00", "Mon 09:30"}
	for h := 10; h < 17; h++ {
		if h != 10 {
			want = append(want, time.Date(2025, 3, 3, h, 0, 0, 0, time.UTC).Format("Mon 15:04"))
		}
		want = append(want, time.Date(2025, 3, 3, h, 30, 0, 0, time.UTC).Format("Mon 15:04"))
	}
	assert.Equal(t, want, starts(slots))
	assert.Len(t, slots, 15)
	assert.Equal(t, "UTC", slots[0].Timezone)
}

func TestComputeHonoursMinimumNotice(t *testing.T) {
	cfg := weekdayConfig()
	cfg.MinimumNoticeHours = 24
	now := at(3, 10, 0)

	slots := ComputeAvailableSlots(cfg, Window{From: at(3, 0, 0), To: at(5, 0, 0)}, nil, now)

	require.NotEmpty(t, slots)
	assert.Equal(t, at(4, 10, 0), slots[0].Start)
	for _, s := range slots {
		assert.False(t, s.Start.Before(at(4, 10, 0)), "slot %s before notice", s.Start)
	}
}

func TestComputeAppliesBuffers(t *testing.T) {
	cfg := weekdayConfig()
	cfg.BufferBeforeMinutes = 15
	cfg.BufferAfterMinutes = 15
	busy := []Busy{{Start: at(3, 10, 0), End: at(3, 10, 30)}}

	slots := ComputeAvailableSlots(cfg, Window{From: at(3, 9, 0), To: at(3, 11, 30)}, busy, at(2, 12, 0))

	assert.Equal(t, []string{"Mon 09:00", "Mon 11:00"}, starts(slots))
}

func TestComputeBackToBackAppointmentsWithBuffers(t *testing.T) {
	cfg := weekdayConfig()
	cfg.BufferBeforeMinutes = 10
	cfg.BufferAfterMinutes = 5
	busy := []Busy{
		{Start: at(3, 11, 0), End: at(3, 11, 30)},
		{Start: at(3, 11, 30), End: at(3, 12, 0)},
	}

	slots := ComputeAvailableSlots(cfg, mondayWindow(), busy, at(2, 12, 0))

	for i := 1; i < len(slots); i++ {
		assert.False(t, overlaps(slots[i-1].Start, slots[i-1].End, slots[i].Start, slots[i].End))
	}
	assert.NotContains(t, starts(slots), "Mon 10:30")
	assert.NotContains(t, starts(slots), "Mon 12:00")
	assert.Contains(t, starts(slots), "Mon 12:30")
}

func TestComputeDropsPartialFinalSlot(t *testing.T) {
	cfg := weekdayConfig()
	cfg.WorkingHours[time.Monday].Ranges = []scheduling.TimeRange{{Start: "09:00", End: "10:45"}}

	slots := ComputeAvailableSlots(cfg, mondayWindow(), nil, at(2, 12, 0))

	assert.Equal(t, []string{"Mon 09:00", "Mon 09:30", "Mon 10:00"}, starts(slots))
}

func TestComputeOrdersSplitShiftsDeclaredOutOfOrder(t *testing.T) {
	cfg := weekdayConfig()
	cfg.WorkingHours[time.Monday].Ranges = []scheduling.TimeRange{
		{Start: "13:00", End: "14:00"},
		{Start: "09:00", End: "10:00"},
	}

	slots := ComputeAvailableSlots(cfg, mondayWindow(), nil, at(2, 12, 0))

	assert.Equal(t, []string{"Mon 09:00", "Mon 09:30", "Mon 13:00", "Mon 13:30"}, starts(slots))
}

func TestComputeKeepsSlotsInsideWindow(t *testing.T) {
	cfg := weekdayConfig()

	slots := ComputeAvailableSlots(cfg, Window{From: at(3, 9, 15), To: at(3, 10, 45)}, nil, at(2, 12, 0))

	assert.Equal(t, []string{"Mon 09:30", "Mon 10:00"}, starts(slots))
}

func TestComputeHonoursMaxDaysAhead(t *testing.T) {
	cfg := weekdayConfig()
	cfg.MaxDaysAhead = 1
	now := at(3, 8, 0)

	slots := ComputeAvailableSlots(cfg, Window{From: at(3, 0, 0), To: at(10, 0, 0)}, nil, now)

	require.Len(t, slots, 16)
	assert.Equal(t, at(3, 16, 30), slots[len(slots)-1].Start)
}

func TestComputeUsesWorkspaceTimezone(t *testing.T) {
	cfg := weekdayConfig()
	cfg.Timezone = "America/New_York"
	cfg.WorkingHours[time.Monday].Ranges = []scheduling.TimeRange{{Start: "09:00", End: "10:00"}}

	slots := ComputeAvailableSlots(cfg, Window{From: at(3, 0, 0), To: at(4, 5, 0)}, nil, at(2, 12, 0))

	require.Len(t, slots, 2)
	assert.Equal(t, at(3, 14, 0), slots[0].Start)
	assert.Equal(t, "America/New_York", slots[0].Timezone)
	assert.Equal(t, time.UTC, slots[0].Start.Location())
}

func TestComputeEmptyCases(t *testing.T) {
	assert.Empty(t, ComputeAvailableSlots(nil, mondayWindow(), nil, at(2, 12, 0)))

	closed := weekdayConfig()
	for i := range closed.WorkingHours {
		closed.WorkingHours[i].Enabled = false
	}
	assert.Empty(t, ComputeAvailableSlots(closed, mondayWindow(), nil, at(2, 12, 0)))

	inverted := Window{From: at(4, 0, 0), To: at(3, 0, 0)}
	assert.Empty(t, ComputeAvailableSlots(weekdayConfig(), inverted, nil, at(2, 12, 0)))

	result := ComputeAvailableSlots(closed, mondayWindow(), nil, at(2, 12, 0))
	assert.NotNil(t, result)
}

func TestComputeProperties(t *testing.T) {
	configs := []func(*scheduling.Config){
		func(c *scheduling.Config) {},
		func(c *scheduling.Config) { c.SlotDurationMinutes = 45; c.MinimumNoticeHours = 5 },
		func(c *scheduling.Config) { c.SlotDurationMinutes = 20; c.MaxDaysAhead = 3; c.BufferAfterMinutes = 10 },
		func(c *scheduling.Config) {
			c.Timezone = "Asia/Kolkata"
			c.SlotDurationMinutes = 60
			c.WorkingHours[time.Saturday] = scheduling.WorkingDay{Day: "saturday", Enabled: true,
				Ranges: []scheduling.TimeRange{{Start: "00:00", End: "24:00"}}}
		},
	}
	busy := []Busy{
		{Start: at(4, 13, 0), End: at(4, 14, 0)},
		{Start: at(6, 9, 0), End: at(6, 9, 45)},
	}
	now := at(3, 11, 7)
	window := Window{From: at(1, 0, 0), To: at(20, 0, 0)}

	for i, mutate := range configs {
		cfg := weekdayConfig()
		mutate(cfg)
		require.NoError(t, cfg.Validate(), "config %d", i)

		slots := ComputeAvailableSlots(cfg, window, busy, now)
		require.NotEmpty(t, slots, "config %d", i)

		earliest := now.Add(cfg.MinimumNotice())
		latest := now.Add(cfg.Horizon())
		for j, s := range slots {
			assert.Equal(t, cfg.SlotDuration(), s.End.Sub(s.Start))
			assert.False(t, s.Start.Before(earliest))
			assert.False(t, s.End.After(latest))
			assert.Equal(t, RejectionNone, CheckSlot(cfg, s, busy, now), "config %d slot %s", i, s.Start)
			if j > 0 {
				assert.False(t, s.Start.Before(slots[j-1].End), "config %d slots overlap", i)
			}
		}
	}
}

func TestCheckSlot(t *testing.T) {
	cfg := weekdayConfig()
	now := at(2, 12, 0)
	busy := []Busy{{Start: at(3, 11, 0), End: at(3, 11, 30)}}

	tests := []struct {
		name string
		slot Slot
		want Rejection
	}{
		{"off-stride custom time inside hours", Slot{Start: at(3, 10, 15), End: at(3, 10, 45)}, RejectionNone},
		{"wrong duration", Slot{Start: at(3, 10, 0), End: at(3, 11, 0)}, RejectMisalignedDuration},
		{"before notice", Slot{Start: at(2, 12, 30), End: at(2, 13, 0)}, RejectTooSoon},
		{"beyond horizon", Slot{Start: at(33, 10, 0), End: at(33, 10, 30)}, RejectTooFarAhead},
		{"saturday", Slot{Start: at(8, 10, 0), End: at(8, 10, 30)}, RejectOutsideWorkingHours},
		{"runs past close", Slot{Start: at(3, 16, 45), End: at(3, 17, 15)}, RejectOutsideWorkingHours},
		{"overlaps booking", Slot{Start: at(3, 11, 15), End: at(3, 11, 45)}, RejectConflict},
		{"adjacent to booking", Slot{Start: at(3, 11, 30), End: at(3, 12, 0)}, RejectionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckSlot(cfg, tt.slot, busy, now))
		})
	}

	assert.Equal(t, RejectOutsideWorkingHours, CheckSlot(nil, tests[0].slot, nil, now))
}

func TestContains(t *testing.T) {
	slots := []Slot{{Start: at(3, 9, 0), End: at(3, 9, 30)}}
	local := Slot{Start: at(3, 9, 0).In(time.FixedZone("X", 3600)), End: at(3, 9, 30)}

	assert.True(t, Contains(slots, local))
	assert.False(t, Contains(slots, Slot{Start: at(3, 9, 30), End: at(3, 10, 0)}))
}
