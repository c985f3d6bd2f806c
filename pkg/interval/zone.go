package interval

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/roombook/roombook/internal/domain"
)

// LocalLayout is the fixed-width civil timestamp format exchanged with the
// calendar provider. It carries no offset and is read in the configured zone.
const LocalLayout = "2006-01-02T15:04:05"

const dateLayout = "2006-01-02"

// Windows zone names some providers report instead of IANA names.
var windowsToIANA = map[string]string{
	"India Standard Time":          "Asia/Kolkata",
	"Pacific Standard Time":        "America/Los_Angeles",
	"Mountain Standard Time":       "America/Denver",
	"Central Standard Time":        "America/Chicago",
	"Eastern Standard Time":        "America/New_York",
	"GMT Standard Time":            "Europe/London",
	"W. Europe Standard Time":      "Europe/Berlin",
	"Central Europe Standard Time": "Europe/Budapest",
	"China Standard Time":          "Asia/Shanghai",
	"Tokyo Standard Time":          "Asia/Tokyo",
	"AUS Eastern Standard Time":    "Australia/Sydney",
	"UTC":                          "UTC",
}

// LoadZone resolves an IANA or Windows zone name.
func LoadZone(name string) (*time.Location, error) {
	if iana, ok := windowsToIANA[name]; ok {
		name = iana
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// FormatLocal renders t as a civil timestamp in loc.
func FormatLocal(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(LocalLayout)
}

// ParseLocal reads a provider timestamp. Offset-less values are interpreted in
// loc; values carrying an offset are converted to loc. Fractional seconds are
// accepted.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation(LocalLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Date is a civil calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// StartIn returns midnight of d in loc.
func (d Date) StartIn(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Bounds returns [startOfDay, startOfNextDay) in loc.
func (d Date) Bounds(loc *time.Location) Window {
	start := d.StartIn(loc)
	return Window{start: start, end: start.AddDate(0, 0, 1)}
}

// accepted day formats, tried in order; ISO first so it wins over the
// day-first layouts
var dayLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"2-1-2006",
	"02-1-2006",
	"1/2/2006",
	"2/1/2006",
}

// ParseDate parses a civil date in any of the accepted formats.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t, time.UTC), nil
		}
	}
	return Date{}, domain.NewValidationError(fmt.Sprintf("invalid date %q, expected yyyy-MM-dd", s))
}

// ParseDateOrToday parses s, falling back to today in loc when s is empty.
func ParseDateOrToday(s string, now time.Time, loc *time.Location) (Date, error) {
	if strings.TrimSpace(s) == "" {
		return DateOf(now, loc), nil
	}
	return ParseDate(s)
}
