// Package scheduling is the entry point of the booking core: it creates
// bookings, lists a day's meetings and cancels or modifies meetings on behalf
// of a caller.
package scheduling

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/internal/event_bus"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/aggregator"
	"github.com/roombook/roombook/pkg/booking"
	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/roombook/roombook/pkg/rooms"
	"github.com/roombook/roombook/pkg/user"
	log "github.com/sirupsen/logrus"
)

// BookingRequest asks for a room for a window. Room is a display name or an
// address.
type BookingRequest struct {
	Title          string
	Body           string
	OrganizerEmail string
	OrganizerName  string
	Room           string
	Start          time.Time
	End            time.Time
	Attendees      []calendar.Attendee
	Recurrence     *interval.RecurrenceRule
}

type Facade struct {
	ledger     *booking.Ledger
	aggregator *aggregator.Aggregator
	provider   calendar.Provider
	directory  *rooms.Directory
	clock      utils.Clock
	eventBus   *event_bus.EventBus
	loc        *time.Location
}

func NewFacade(
	ledger *booking.Ledger,
	agg *aggregator.Aggregator,
	provider calendar.Provider,
	directory *rooms.Directory,
	clock utils.Clock,
	eventBus *event_bus.EventBus,
) *Facade {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Facade{
		ledger:     ledger,
		aggregator: agg,
		provider:   provider,
		directory:  directory,
		clock:      clock,
		eventBus:   eventBus,
		loc:        agg.Location(),
	}
}

func (f *Facade) Location() *time.Location {
	return f.loc
}

// CreateBooking records the booking in the ledger and creates the matching
// provider event. When the provider refuses, the ledger entry is withdrawn.
func (f *Facade) CreateBooking(ctx context.Context, req BookingRequest) (booking.Booking, error) {
	if err := validateBookingRequest(req); err != nil {
		return booking.Booking{}, err
	}
	room, err := f.resolveRoom(ctx, req.Room)
	if err != nil {
		return booking.Booking{}, err
	}

	start, end := req.Start.In(f.loc), req.End.In(f.loc)
	var rule *interval.RecurrenceRule
	if req.Recurrence != nil {
		if req.Recurrence.Pattern == interval.Weekly {
			aligned := interval.AlignToWeeklyMask(start, req.Recurrence.WeeklyDays)
			end = end.Add(aligned.Sub(start))
			start = aligned
		}
		normalized := req.Recurrence.Normalize(start)
		if err := normalized.Validate(start); err != nil {
			return booking.Booking{}, err
		}
		rule = &normalized
	}
	window, err := interval.New(start, end)
	if err != nil {
		return booking.Booking{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = aggregator.NoTitle
	}
	organizerName := aggregator.OrganizerName(req.OrganizerName, req.OrganizerEmail)

	created, err := f.ledger.Create(booking.Booking{
		Title:           title,
		Window:          window,
		OrganizerEmail:  strings.TrimSpace(req.OrganizerEmail),
		OrganizerName:   organizerName,
		RoomEmail:       room.Address,
		RoomDisplayName: room.DisplayName,
		Recurrence:      rule,
	})
	if err != nil {
		return booking.Booking{}, err
	}

	body := req.Body
	if strings.TrimSpace(body) == "" {
		body = title
	}
	event, err := f.provider.CreateEvent(ctx, created.OrganizerEmail, calendar.EventSpec{
		Subject:    title,
		Body:       body,
		Start:      window.Start(),
		End:        window.End(),
		Location:   calendar.Location{Name: room.DisplayName, Address: room.Address},
		Attendees:  composeAttendees(created, req.Attendees),
		Recurrence: rule,
	})
	if err != nil {
		if _, cancelErr := f.ledger.Cancel(created.ID); cancelErr != nil {
			log.Errorf("failed to withdraw booking %s after provider failure: %v", created.ID, cancelErr)
		}
		if domain.IsType(err, domain.ErrorTypeConflict) {
			return booking.Booking{}, domain.NewRoomConflictError(fmt.Sprintf("room %s is not available", room.DisplayName), err)
		}
		return booking.Booking{}, err
	}

	created, err = f.ledger.AttachProviderRefs(created.ID, event.ID, event.SeriesID)
	if err != nil {
		return booking.Booking{}, err
	}

	f.publish(ctx, event_bus.BookingCreatedEvent, event_bus.BookingCreated{
		BookingID:       created.ID,
		Title:           created.Title,
		OrganizerEmail:  created.OrganizerEmail,
		RoomEmail:       created.RoomEmail,
		Start:           created.Window.Start(),
		End:             created.Window.End(),
		ProviderEventID: created.ProviderEventID,
		SeriesID:        created.SeriesID,
		Recurring:       created.Recurrence != nil,
	})
	return created, nil
}

func validateBookingRequest(req BookingRequest) error {
	fields := map[string]string{}
	if !isMailbox(req.OrganizerEmail) {
		fields["organizerEmail"] = "a valid email address is required"
	}
	if strings.TrimSpace(req.Room) == "" {
		fields["room"] = "is required"
	}
	if req.Start.IsZero() {
		fields["start"] = "is required"
	}
	if req.End.IsZero() {
		fields["end"] = "is required"
	}
	for i, a := range req.Attendees {
		if !isMailbox(a.Email) {
			fields[fmt.Sprintf("attendees[%d].email", i)] = "a valid email address is required"
		}
	}
	return domain.NewFieldValidationError(fields)
}

// resolveRoom looks the room up in the directory. An address the directory
// does not know is still bookable and displayed by its address.
func (f *Facade) resolveRoom(ctx context.Context, nameOrAddress string) (rooms.Room, error) {
	nameOrAddress = strings.TrimSpace(nameOrAddress)
	room, err := f.directory.Resolve(ctx, nameOrAddress)
	if err == nil {
		return room, nil
	}
	if !domain.IsType(err, domain.ErrorTypeNotFound) {
		return rooms.Room{}, err
	}
	if !isMailbox(nameOrAddress) {
		return rooms.Room{}, domain.NewFieldValidationError(map[string]string{
			"room": fmt.Sprintf("unknown room %q", nameOrAddress),
		})
	}
	return rooms.Room{Address: nameOrAddress, DisplayName: nameOrAddress}, nil
}

// composeAttendees lists the organizer, the room as a resource, then the
// extra attendees, skipping repeats.
func composeAttendees(b booking.Booking, extra []calendar.Attendee) []calendar.Attendee {
	attendees := []calendar.Attendee{
		{Email: b.OrganizerEmail, Name: b.OrganizerName, Role: calendar.RoleRequired},
		{Email: b.RoomEmail, Name: b.RoomDisplayName, Role: calendar.RoleResource},
	}
	for _, a := range extra {
		email := strings.TrimSpace(a.Email)
		if slices.ContainsFunc(attendees, func(x calendar.Attendee) bool { return strings.EqualFold(x.Email, email) }) {
			continue
		}
		role := a.Role
		if role == "" {
			role = calendar.RoleRequired
		}
		attendees = append(attendees, calendar.Attendee{Email: email, Name: a.Name, Role: role})
	}
	return attendees
}

// ListDay lists the merged meetings of the given rooms for date. No rooms
// means every known room; an empty date means today.
func (f *Facade) ListDay(ctx context.Context, roomAddresses []string, date string) ([]aggregator.CanonicalMeeting, error) {
	day, err := interval.ParseDateOrToday(date, f.clock.Now(), f.loc)
	if err != nil {
		return nil, err
	}
	mailboxes, err := f.mailboxes(ctx, roomAddresses)
	if err != nil {
		return nil, err
	}
	if len(mailboxes) == 0 {
		return []aggregator.CanonicalMeeting{}, nil
	}
	return f.aggregator.ListMeetings(ctx, mailboxes, day)
}

func (f *Facade) mailboxes(ctx context.Context, addresses []string) ([]rooms.Room, error) {
	if len(addresses) == 0 {
		return f.directory.List(ctx)
	}
	fields := map[string]string{}
	for i, a := range addresses {
		if !isMailbox(a) {
			fields[fmt.Sprintf("rooms[%d]", i)] = fmt.Sprintf("%q is not a mailbox address", a)
		}
	}
	if err := domain.NewFieldValidationError(fields); err != nil {
		return nil, err
	}

	mailboxes := make([]rooms.Room, 0, len(addresses))
	for _, a := range addresses {
		room, err := f.directory.ResolveByAddress(ctx, a)
		switch {
		case err == nil:
		case domain.IsType(err, domain.ErrorTypeNotFound):
			room = rooms.Room{Address: strings.TrimSpace(a), DisplayName: strings.TrimSpace(a)}
		default:
			return nil, err
		}
		if !slices.ContainsFunc(mailboxes, func(r rooms.Room) bool { return strings.EqualFold(r.Address, room.Address) }) {
			mailboxes = append(mailboxes, room)
		}
	}
	return mailboxes, nil
}

// CancelMeeting deletes the organizer's meeting named by identityKey and
// removes its ledger entry, if any.
func (f *Facade) CancelMeeting(ctx context.Context, identityKey, organizerEmail string, caller user.User) error {
	target, err := f.locateForChange(ctx, identityKey, organizerEmail, caller)
	if err != nil {
		return err
	}

	if err := f.provider.DeleteEvent(ctx, organizerEmail, target.event.ID); err != nil {
		return err
	}

	var bookingID string
	if b, ok := f.ledgerEntry(organizerEmail, target); ok {
		if _, err := f.ledger.Cancel(b.ID); err != nil && !domain.IsType(err, domain.ErrorTypeNotFound) {
			return err
		}
		bookingID = b.ID
	}
	log.Debugf("meeting %s of %s cancelled by %s", target.event.ID, organizerEmail, caller.Email)

	f.publish(ctx, event_bus.MeetingCancelledEvent, event_bus.MeetingCancelled{
		IdentityKey:     identityKey,
		OrganizerEmail:  organizerEmail,
		CancelledBy:     caller.Email,
		ProviderEventID: target.event.ID,
		BookingID:       bookingID,
	})
	return nil
}

// ModifyMeeting applies the set fields of patch to the organizer's meeting.
// A ledger entry for the meeting is moved first, so a window clashing with the
// organizer's other bookings is refused before the provider is touched; it is
// put back if the provider write fails.
func (f *Facade) ModifyMeeting(ctx context.Context, identityKey, organizerEmail string, caller user.User, patch Patch) error {
	if patch.IsEmpty() {
		return domain.NewValidationError("patch contains no fields to change")
	}
	if patch.Attendees.Set {
		fields := map[string]string{}
		for i, a := range patch.Attendees.Value {
			if !isMailbox(a.Email) {
				fields[fmt.Sprintf("attendees[%d].email", i)] = "a valid email address is required"
			}
		}
		if err := domain.NewFieldValidationError(fields); err != nil {
			return err
		}
	}

	target, err := f.locateForChange(ctx, identityKey, organizerEmail, caller)
	if err != nil {
		return err
	}

	newWindow := target.window
	if patch.changesWindow() {
		newWindow, err = interval.New(
			patch.Start.Get(target.window.Start()).In(f.loc),
			patch.End.Get(target.window.End()).In(f.loc),
		)
		if err != nil {
			return err
		}
	}

	partial := calendar.PartialSpec{Subject: patch.Subject}
	if patch.changesWindow() {
		partial.Start = utils.Some(newWindow.Start())
		partial.End = utils.Some(newWindow.End())
	}
	if patch.Attendees.Set {
		partial.Attendees = utils.Some(replaceAttendees(target.event, organizerEmail, patch.Attendees.Value))
	}

	var bookingID string
	previous, tracked := f.ledgerEntry(organizerEmail, target)
	if tracked && (patch.changesWindow() || patch.Subject.Set) {
		var title *string
		if patch.Subject.Set {
			title = &patch.Subject.Value
		}
		if _, err := f.ledger.Modify(previous.ID, newWindow, title); err != nil {
			return err
		}
	}
	if tracked {
		bookingID = previous.ID
	}

	if err := f.provider.PatchEvent(ctx, organizerEmail, target.event.ID, partial); err != nil {
		if tracked {
			if restoreErr := f.ledger.Restore(previous); restoreErr != nil {
				log.Errorf("failed to restore booking %s after provider failure: %v", previous.ID, restoreErr)
			}
		}
		return err
	}
	log.Debugf("meeting %s of %s modified by %s: %v", target.event.ID, organizerEmail, caller.Email, patch.ChangedFields())

	f.publish(ctx, event_bus.MeetingModifiedEvent, event_bus.MeetingModified{
		IdentityKey:     identityKey,
		OrganizerEmail:  organizerEmail,
		ModifiedBy:      caller.Email,
		ProviderEventID: target.event.ID,
		BookingID:       bookingID,
		ChangedFields:   patch.ChangedFields(),
	})
	return nil
}

// replaceAttendees swaps the people on an event for attendees while keeping
// the organizer and the booked rooms.
func replaceAttendees(event calendar.RawEvent, organizerEmail string, attendees []calendar.Attendee) []calendar.Attendee {
	var kept []calendar.Attendee
	for _, a := range event.Attendees {
		if a.Role == calendar.RoleResource || strings.EqualFold(a.Email, organizerEmail) {
			kept = append(kept, a)
		}
	}
	if !slices.ContainsFunc(kept, func(a calendar.Attendee) bool { return strings.EqualFold(a.Email, organizerEmail) }) {
		kept = append([]calendar.Attendee{{Email: organizerEmail, Name: event.OrganizerName, Role: calendar.RoleRequired}}, kept...)
	}
	for _, a := range attendees {
		email := strings.TrimSpace(a.Email)
		if slices.ContainsFunc(kept, func(x calendar.Attendee) bool { return strings.EqualFold(x.Email, email) }) {
			continue
		}
		role := a.Role
		if role == "" {
			role = calendar.RoleRequired
		}
		kept = append(kept, calendar.Attendee{Email: email, Name: a.Name, Role: role})
	}
	return kept
}

// ListBookings returns the ledger's bookings, all of them when organizerEmail is empty.
func (f *Facade) ListBookings(organizerEmail string) []booking.Booking {
	if strings.TrimSpace(organizerEmail) == "" {
		return f.ledger.ListAll()
	}
	return f.ledger.ListForOrganizer(organizerEmail)
}

func (f *Facade) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if f.eventBus == nil {
		return
	}
	// publishing never fails the operation that caused the event
	if err := f.eventBus.Publish(event_bus.NewEvent(context.WithoutCancel(ctx), eventType, data)); err != nil {
		log.Errorf("failed to publish %s: %v", eventType, err)
	}
}

func isMailbox(address string) bool {
	address = strings.TrimSpace(address)
	at := strings.Index(address, "@")
	return at > 0 && at < len(address)-1
}
