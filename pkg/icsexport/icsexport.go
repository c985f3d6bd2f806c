// Package icsexport renders a day of merged meetings as an iCalendar feed.
package icsexport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/roombook/roombook/pkg/aggregator"
)

const ProductID = "-//roombook//room bookings//EN"

// Render writes one VEVENT per meeting. Times are written in UTC; stamp is
// used as DTSTAMP.
func Render(w io.Writer, meetings []aggregator.CanonicalMeeting, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	for _, m := range meetings {
		cal.Children = append(cal.Children, toEvent(m, stamp).Component)
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func toEvent(m aggregator.CanonicalMeeting, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, m.IdentityKey+"@roombook")
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, m.Window.Start().UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, m.Window.End().UTC())
	event.Props.SetText(ical.PropSummary, m.Subject)
	if len(m.Rooms) > 0 {
		event.Props.SetText(ical.PropLocation, strings.Join(m.Rooms, ", "))
	}
	if m.OrganizerEmail != "" {
		organizer := ical.NewProp(ical.PropOrganizer)
		organizer.Value = "mailto:" + m.OrganizerEmail
		if m.Organizer != "" {
			organizer.Params.Set(ical.ParamCommonName, m.Organizer)
		}
		event.Props.Set(organizer)
	}
	return event
}
