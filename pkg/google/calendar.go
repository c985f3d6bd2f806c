package google

import (
	"context"
	"time"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/interval"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
)

// Calendar implements calendar.Provider on the Google Calendar API. Room
// calendars are addressed by their resource email.
type Calendar struct {
	service *gcal.Service
	loc     *time.Location
}

func NewCalendar(service *gcal.Service, loc *time.Location) *Calendar {
	return &Calendar{service: service, loc: loc}
}

func (c *Calendar) ListEvents(ctx context.Context, mailbox string, windowStartLocal string, windowEndLocal string) ([]calendar.RawEvent, error) {
	from, err := interval.ParseLocal(windowStartLocal, c.loc)
	if err != nil {
		return nil, domain.NewValidationError("invalid window start", err)
	}
	to, err := interval.ParseLocal(windowEndLocal, c.loc)
	if err != nil {
		return nil, domain.NewValidationError("invalid window end", err)
	}
	log.Tracef("listing Google events of %s between %s and %s", mailbox, windowStartLocal, windowEndLocal)

	var events []calendar.RawEvent
	err = c.service.Events.List(mailbox).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		TimeZone(c.loc.String()).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				if item.Status == "cancelled" {
					continue
				}
				events = append(events, c.toRawEvent(item))
			}
			return nil
		})
	if err != nil {
		return nil, mapError(err, "unable to retrieve events of %s from Google Calendar", mailbox)
	}
	return events, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, organizerMailbox string, spec calendar.EventSpec) (calendar.RawEvent, error) {
	event := &gcal.Event{
		Summary:     spec.Subject,
		Description: spec.Body,
		Location:    spec.Location.Name,
		Start:       c.toEventDateTime(spec.Start),
		End:         c.toEventDateTime(spec.End),
		Attendees:   toGoogleAttendees(spec.Attendees),
	}
	if spec.Recurrence != nil {
		rule, err := spec.Recurrence.RRule(spec.Start.In(c.loc))
		if err != nil {
			return calendar.RawEvent{}, err
		}
		event.Recurrence = []string{rule}
	}
	log.Debugf("inserting Google event %q into %s", spec.Subject, organizerMailbox)

	created, err := c.service.Events.Insert(organizerMailbox, event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return calendar.RawEvent{}, mapError(err, "unable to insert event in Google Calendar")
	}
	for _, a := range created.Attendees {
		if a.Resource && a.ResponseStatus == "declined" {
			log.Warnf("room %s declined %q, removing the event", a.Email, spec.Subject)
			if err := c.service.Events.Delete(organizerMailbox, created.Id).Context(ctx).Do(); err != nil {
				log.Errorf("failed to remove declined event %s: %v", created.Id, err)
			}
			return calendar.RawEvent{}, domain.NewRoomConflictError("room " + a.Email + " is already booked")
		}
	}
	return c.toRawEvent(created), nil
}

func (c *Calendar) FindEventBySeriesID(ctx context.Context, mailbox string, seriesID string) (calendar.RawEvent, error) {
	result, err := c.service.Events.List(mailbox).ICalUID(seriesID).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return calendar.RawEvent{}, mapError(err, "unable to look up series %s in %s", seriesID, mailbox)
	}
	if len(result.Items) == 0 {
		return calendar.RawEvent{}, domain.NewNotFoundError("no event with series " + seriesID + " in " + mailbox)
	}
	return c.toRawEvent(result.Items[0]), nil
}

func (c *Calendar) DeleteEvent(ctx context.Context, mailbox string, eventID string) error {
	err := c.service.Events.Delete(mailbox, eventID).SendUpdates("all").Context(ctx).Do()
	return mapError(err, "unable to delete event %s from %s", eventID, mailbox)
}

func (c *Calendar) PatchEvent(ctx context.Context, mailbox string, eventID string, patch calendar.PartialSpec) error {
	event := &gcal.Event{}
	if patch.Subject.Set {
		event.Summary = patch.Subject.Value
		event.ForceSendFields = append(event.ForceSendFields, "Summary")
	}
	if patch.Start.Set {
		event.Start = c.toEventDateTime(patch.Start.Value)
	}
	if patch.End.Set {
		event.End = c.toEventDateTime(patch.End.Value)
	}
	if patch.Attendees.Set {
		event.Attendees = toGoogleAttendees(patch.Attendees.Value)
		event.ForceSendFields = append(event.ForceSendFields, "Attendees")
	}
	_, err := c.service.Events.Patch(mailbox, eventID, event).SendUpdates("all").Context(ctx).Do()
	return mapError(err, "unable to patch event %s in %s", eventID, mailbox)
}

func (c *Calendar) toEventDateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.In(c.loc).Format(time.RFC3339),
		TimeZone: c.loc.String(),
	}
}

func (c *Calendar) toLocal(dt *gcal.EventDateTime) string {
	if dt == nil {
		return ""
	}
	value := dt.DateTime
	if value == "" {
		value = dt.Date
	}
	t, err := interval.ParseLocal(value, c.loc)
	if err != nil {
		// left for the aggregator to reject
		return value
	}
	return interval.FormatLocal(t, c.loc)
}

func (c *Calendar) toRawEvent(item *gcal.Event) calendar.RawEvent {
	raw := calendar.RawEvent{
		ID:       item.Id,
		SeriesID: item.ICalUID,
		Subject:  item.Summary,
		Start:    c.toLocal(item.Start),
		End:      c.toLocal(item.End),
		Location: item.Location,
	}
	if item.Organizer != nil {
		raw.OrganizerEmail = item.Organizer.Email
		raw.OrganizerName = item.Organizer.DisplayName
	}
	for _, a := range item.Attendees {
		role := calendar.RoleRequired
		switch {
		case a.Resource:
			role = calendar.RoleResource
		case a.Optional:
			role = calendar.RoleOptional
		}
		raw.Attendees = append(raw.Attendees, calendar.Attendee{Email: a.Email, Name: a.DisplayName, Role: role})
	}
	return raw
}

func toGoogleAttendees(attendees []calendar.Attendee) []*gcal.EventAttendee {
	result := make([]*gcal.EventAttendee, 0, len(attendees))
	for _, a := range attendees {
		result = append(result, &gcal.EventAttendee{
			Email:       a.Email,
			DisplayName: a.Name,
			Optional:    a.Role == calendar.RoleOptional,
			Resource:    a.Role == calendar.RoleResource,
		})
	}
	return result
}
