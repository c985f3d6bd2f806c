package event_bus

import "time"

const (
	BookingCreatedEvent   EventType = "booking.created"
	MeetingCancelledEvent EventType = "meeting.cancelled"
	MeetingModifiedEvent  EventType = "meeting.modified"
)

type BookingCreated struct {
	BookingID       string
	Title           string
	OrganizerEmail  string
	RoomEmail       string
	Start           time.Time
	End             time.Time
	ProviderEventID string
	SeriesID        string
	Recurring       bool
}

type MeetingCancelled struct {
	IdentityKey     string
	OrganizerEmail  string
	CancelledBy     string
	ProviderEventID string
	// BookingID is empty when the meeting was not booked through this service.
	BookingID string
}

type MeetingModified struct {
	IdentityKey     string
	OrganizerEmail  string
	ModifiedBy      string
	ProviderEventID string
	BookingID       string
	// ChangedFields names the patch fields that were applied.
	ChangedFields []string
}
