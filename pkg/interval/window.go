package interval

import (
	"fmt"
	"time"

	"github.com/roombook/roombook/internal/domain"
)

// Window is a half-open time span [start, end). It is immutable once built.
type Window struct {
	start time.Time
	end   time.Time
}

// New builds a Window, rejecting spans where start is not strictly before end.
func New(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, domain.NewValidationError("time window requires both start and end")
	}
	if !start.Before(end) {
		return Window{}, domain.NewValidationError(
			fmt.Sprintf("time window start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	return Window{start: start, end: end}, nil
}

func (w Window) Start() time.Time { return w.start }

func (w Window) End() time.Time { return w.end }

func (w Window) Duration() time.Duration { return w.end.Sub(w.start) }

func (w Window) IsZero() bool { return w.start.IsZero() && w.end.IsZero() }

// Shift moves both ends of the window by d.
func (w Window) Shift(d time.Duration) Window {
	return Window{start: w.start.Add(d), end: w.end.Add(d)}
}

// In returns the same instants expressed in loc.
func (w Window) In(loc *time.Location) Window {
	return Window{start: w.start.In(loc), end: w.end.In(loc)}
}

// Equal reports whether both windows denote the same instants.
func (w Window) Equal(o Window) bool {
	return w.start.Equal(o.start) && w.end.Equal(o.end)
}

func (w Window) Overlaps(o Window) bool {
	return Overlaps(w, o)
}

func (w Window) String() string {
	return "[" + w.start.Format(time.RFC3339) + ", " + w.end.Format(time.RFC3339) + ")"
}

// Overlaps reports whether a and b share at least one instant. Touching
// endpoints do not overlap.
func Overlaps(a, b Window) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

// WeekdayMask is a bitmask over weekdays, bit 0 is Sunday and bit 6 is Saturday.
type WeekdayMask uint8

const allWeekdays WeekdayMask = 0x7f

// MaskOf builds a mask selecting the given weekdays.
func MaskOf(days ...time.Weekday) WeekdayMask {
	var m WeekdayMask
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}

func (m WeekdayMask) Has(d time.Weekday) bool {
	return m&(1<<uint(d)) != 0
}

// Weekdays lists the selected weekdays starting from Sunday.
func (m WeekdayMask) Weekdays() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if m.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (m WeekdayMask) valid() bool {
	return m&^allWeekdays == 0
}

// AlignToWeeklyMask moves base forward by 0-6 days to the first day selected in
// mask, keeping the wall clock time. An empty mask returns base unchanged.
func AlignToWeeklyMask(base time.Time, mask WeekdayMask) time.Time {
	if mask&allWeekdays == 0 {
		return base
	}
	for i := 0; i < 7; i++ {
		candidate := base.AddDate(0, 0, i)
		if mask.Has(candidate.Weekday()) {
			return candidate
		}
	}
	return base
}
