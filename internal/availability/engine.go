// Package availability computes bookable slots from a workspace's
// scheduling config and its existing appointments.
package availability

import (
	"sort"
	"time"

	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
)

// Window is the half-open interval [From, To) a caller asks slots for.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Slot is one bookable interval. Start and End are UTC; Timezone is the
// workspace zone, for display.
type Slot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Timezone string    `json:"timezone"`
}

// Busy is an existing appointment interval, before buffers are applied.
type Busy struct {
	Start time.Time
	End   time.Time
}

// Rejection explains why a proposed slot is not bookable. Empty means OK.
type Rejection string

const (
	RejectionNone             Rejection = ""
	RejectOutsideWorkingHours Rejection = "outside_working_hours"
	RejectTooSoon             Rejection = "too_soon"
	RejectTooFarAhead         Rejection = "too_far_ahead"
	RejectConflict            Rejection = "conflict"
	RejectMisalignedDuration  Rejection = "misaligned_duration"
)

// Equal compares slots by instant, ignoring location.
func (s Slot) Equal(other Slot) bool {
	return s.Start.Equal(other.Start) && s.End.Equal(other.End)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// bounds are the notice/horizon limits relative to now.
type bounds struct {
	earliest time.Time
	latest   time.Time
}

func boundsFor(cfg *scheduling.Config, now time.Time) bounds {
	return bounds{
		earliest: now.Add(cfg.MinimumNotice()),
		latest:   now.Add(cfg.Horizon()),
	}
}

type expandedBusy struct {
	start time.Time
	end   time.Time
}

func expandBusy(cfg *scheduling.Config, busy []Busy) []expandedBusy {
	out := make([]expandedBusy, 0, len(busy))
	before, after := cfg.BufferBefore(), cfg.BufferAfter()
	for _, b := range busy {
		if !b.End.After(b.Start) {
			continue
		}
		out = append(out, expandedBusy{start: b.Start.Add(-before), end: b.End.Add(after)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

func conflicts(expanded []expandedBusy, start, end time.Time) bool {
	// expanded is sorted by start; everything at or past end cannot overlap.
	idx := sort.Search(len(expanded), func(i int) bool { return !expanded[i].start.Before(end) })
	for i := 0; i < idx; i++ {
		if overlaps(start, end, expanded[i].start, expanded[i].end) {
			return true
		}
	}
	return false
}

// ComputeAvailableSlots returns the ordered bookable slots inside window.
// A nil config, an unknown timezone or a config with no enabled day yields
// an empty list. The function is pure and safe for concurrent use.
func ComputeAvailableSlots(cfg *scheduling.Config, window Window, busy []Busy, now time.Time) []Slot {
	slots := []Slot{}
	if cfg == nil || !cfg.HasEnabledDay() || cfg.SlotDurationMinutes <= 0 {
		return slots
	}
	loc, err := cfg.Location()
	if err != nil {
		return slots
	}

	lim := boundsFor(cfg, now)
	from, to := window.From, window.To
	if lim.earliest.After(from) {
		from = lim.earliest
	}
	if lim.latest.Before(to) {
		to = lim.latest
	}
	if !from.Before(to) {
		return slots
	}

	expanded := expandBusy(cfg, busy)
	step := cfg.SlotDuration()
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}

	localFrom := from.In(loc)
	y, m, d := localFrom.Date()
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); day.Before(to); {
		var daySlots []Slot
		wd := cfg.Day(day.Weekday())
		if wd.Enabled {
			for _, r := range wd.Ranges {
				rangeStart, rangeEnd, ok := rangeOn(day, r, loc)
				if !ok {
					continue
				}
				for start := rangeStart; !start.Add(step).After(rangeEnd); start = start.Add(step) {
					end := start.Add(step)
					if start.Before(from) || end.After(to) {
						continue
					}
					if conflicts(expanded, start, end) {
						continue
					}
					daySlots = append(daySlots, Slot{Start: start.UTC(), End: end.UTC(), Timezone: tz})
				}
			}
		}
		sort.SliceStable(daySlots, func(i, j int) bool { return daySlots[i].Start.Before(daySlots[j].Start) })
		slots = append(slots, daySlots...)

		y, m, d = day.Date()
		day = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	return slots
}

// rangeOn anchors a wall-clock range to a local day.
func rangeOn(day time.Time, r scheduling.TimeRange, loc *time.Location) (time.Time, time.Time, bool) {
	startMin, endMin, err := r.Minutes()
	if err != nil || startMin >= endMin {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := day.Date()
	start := time.Date(y, m, d, startMin/60, startMin%60, 0, 0, loc)
	end := time.Date(y, m, d, endMin/60, endMin%60, 0, 0, loc)
	return start, end, true
}

// CheckSlot applies the slot rules to an arbitrary proposed slot. It does
// not require stride alignment, so custom times between offered slots pass
// when they otherwise fit.
func CheckSlot(cfg *scheduling.Config, slot Slot, busy []Busy, now time.Time) Rejection {
	if cfg == nil || !cfg.HasEnabledDay() {
		return RejectOutsideWorkingHours
	}
	loc, err := cfg.Location()
	if err != nil {
		return RejectOutsideWorkingHours
	}
	if slot.End.Sub(slot.Start) != cfg.SlotDuration() {
		return RejectMisalignedDuration
	}
	lim := boundsFor(cfg, now)
	if slot.Start.Before(lim.earliest) {
		return RejectTooSoon
	}
	if slot.End.After(lim.latest) {
		return RejectTooFarAhead
	}
	if !withinWorkingHours(cfg, slot, loc) {
		return RejectOutsideWorkingHours
	}
	if conflicts(expandBusy(cfg, busy), slot.Start, slot.End) {
		return RejectConflict
	}
	return RejectionNone
}

func withinWorkingHours(cfg *scheduling.Config, slot Slot, loc *time.Location) bool {
	local := slot.Start.In(loc)
	y, m, d := local.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	wd := cfg.Day(day.Weekday())
	if !wd.Enabled {
		return false
	}
	for _, r := range wd.Ranges {
		start, end, ok := rangeOn(day, r, loc)
		if !ok {
			continue
		}
		if !slot.Start.Before(start) && !slot.End.After(end) {
			return true
		}
	}
	return false
}

// HasConflict reports whether slot overlaps any buffered busy interval.
func HasConflict(cfg *scheduling.Config, slot Slot, busy []Busy) bool {
	if cfg == nil {
		cfg = &scheduling.Config{}
	}
	return conflicts(expandBusy(cfg, busy), slot.Start, slot.End)
}

// Contains reports whether want is one of slots.
func Contains(slots []Slot, want Slot) bool {
	for _, s := range slots {
		if s.Equal(want) {
			return true
		}
	}
	return false
}
