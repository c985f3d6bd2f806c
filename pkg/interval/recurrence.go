package interval

import (
	"fmt"
	"time"

	"github.com/roombook/roombook/internal/domain"
	"github.com/teambition/rrule-go"
)

type PatternType string

const (
	Daily   PatternType = "daily"
	Weekly  PatternType = "weekly"
	Monthly PatternType = "monthly"
	Yearly  PatternType = "yearly"
)

type RangeType string

const (
	NoEnd    RangeType = "noEnd"
	EndDate  RangeType = "endDate"
	Numbered RangeType = "numbered"
)

// Range is the termination rule of a series.
type Range struct {
	Type    RangeType
	EndDate Date // EndDate ranges only, inclusive
	Count   int  // Numbered ranges only
}

// RecurrenceRule describes how a window repeats. The rule is carried, not
// expanded: expansion belongs to the calendar provider.
type RecurrenceRule struct {
	Pattern PatternType
	// Interval repeats every N periods; zero means 1.
	Interval   int
	WeeklyDays WeekdayMask
	MonthDay   int
	Month      time.Month
	Range      Range
}

// Normalize fills the defaults derived from the series' first occurrence:
// interval 1, the first occurrence's weekday for an empty weekly mask, and its
// day/month for monthly and yearly rules without one.
func (r RecurrenceRule) Normalize(first time.Time) RecurrenceRule {
	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.Range.Type == "" {
		r.Range.Type = NoEnd
	}
	switch r.Pattern {
	case Weekly:
		if r.WeeklyDays&allWeekdays == 0 {
			r.WeeklyDays = MaskOf(first.Weekday())
		}
	case Monthly:
		if r.MonthDay == 0 {
			r.MonthDay = first.Day()
		}
	case Yearly:
		if r.MonthDay == 0 {
			r.MonthDay = first.Day()
		}
		if r.Month == 0 {
			r.Month = first.Month()
		}
	}
	return r
}

// Validate checks the rule against the series' first occurrence.
func (r RecurrenceRule) Validate(first time.Time) error {
	fields := map[string]string{}
	switch r.Pattern {
	case Daily, Weekly, Monthly, Yearly:
	default:
		fields["recurrence.pattern"] = fmt.Sprintf("unsupported pattern %q", r.Pattern)
	}
	if r.Interval < 0 {
		fields["recurrence.interval"] = "must be at least 1"
	}
	if !r.WeeklyDays.valid() {
		fields["recurrence.weeklyDays"] = "mask may only use the 7 weekday bits"
	}
	if r.MonthDay < 0 || r.MonthDay > 31 {
		fields["recurrence.monthDay"] = "must be between 1 and 31"
	}
	if r.Month < 0 || r.Month > time.December {
		fields["recurrence.month"] = "must be between 1 and 12"
	}
	switch r.Range.Type {
	case "", NoEnd:
	case EndDate:
		if r.Range.EndDate.IsZero() {
			fields["recurrence.range.endDate"] = "is required for an end-date range"
		} else if r.Range.EndDate.StartIn(first.Location()).AddDate(0, 0, 1).Before(first) {
			fields["recurrence.range.endDate"] = "must not be before the first occurrence"
		}
	case Numbered:
		if r.Range.Count < 1 {
			fields["recurrence.range.count"] = "must be at least 1"
		}
	default:
		fields["recurrence.range.type"] = fmt.Sprintf("unsupported range %q", r.Range.Type)
	}
	return domain.NewFieldValidationError(fields)
}

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

var rruleFrequencies = map[PatternType]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

// ROption translates the rule into an rrule option anchored at first.
func (r RecurrenceRule) ROption(first time.Time) (rrule.ROption, error) {
	if err := r.Validate(first); err != nil {
		return rrule.ROption{}, err
	}
	n := r.Normalize(first)
	opt := rrule.ROption{
		Freq:     rruleFrequencies[n.Pattern],
		Dtstart:  first,
		Interval: n.Interval,
		Wkst:     rrule.SU,
	}
	switch n.Pattern {
	case Weekly:
		for _, d := range n.WeeklyDays.Weekdays() {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case Monthly:
		opt.Bymonthday = []int{n.MonthDay}
	case Yearly:
		opt.Bymonth = []int{int(n.Month)}
		opt.Bymonthday = []int{n.MonthDay}
	}
	switch n.Range.Type {
	case EndDate:
		d := n.Range.EndDate
		opt.Until = time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, first.Location())
	case Numbered:
		opt.Count = n.Range.Count
	}
	return opt, nil
}

// RRule renders the rule as an RFC 5545 RRULE property line, the encoding
// calendar providers accept for series.
func (r RecurrenceRule) RRule(first time.Time) (string, error) {
	opt, err := r.ROption(first)
	if err != nil {
		return "", err
	}
	if _, err := rrule.NewRRule(opt); err != nil {
		return "", domain.NewValidationError("invalid recurrence rule", err)
	}
	return "RRULE:" + opt.RRuleString(), nil
}
