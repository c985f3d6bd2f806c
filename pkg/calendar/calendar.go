package calendar

import (
	"context"
	"time"

	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/interval"
)

// Provider is the external calendar service. Mailboxes are email addresses of
// people or room resources; local timestamps use interval.LocalLayout in the
// provider's configured zone.
type Provider interface {
	ListEvents(ctx context.Context, mailbox string, windowStartLocal string, windowEndLocal string) ([]RawEvent, error)
	CreateEvent(ctx context.Context, organizerMailbox string, spec EventSpec) (RawEvent, error)
	FindEventBySeriesID(ctx context.Context, mailbox string, seriesID string) (RawEvent, error)
	DeleteEvent(ctx context.Context, mailbox string, eventID string) error
	PatchEvent(ctx context.Context, mailbox string, eventID string, patch PartialSpec) error
}

type AttendeeRole string

const (
	RoleRequired AttendeeRole = "required"
	RoleOptional AttendeeRole = "optional"
	RoleResource AttendeeRole = "resource"
)

type Attendee struct {
	Email string       `json:"email"`
	Name  string       `json:"name,omitempty"`
	Role  AttendeeRole `json:"role,omitempty"`
}

// RawEvent is one event as a single mailbox sees it.
type RawEvent struct {
	ID       string
	SeriesID string // shared by every mailbox copy of the same meeting, may be empty
	Subject  string
	Start    string
	End      string
	Location string
	// Locations lists secondary locations when the event has several.
	Locations      []string
	Attendees      []Attendee
	OrganizerName  string
	OrganizerEmail string
}

type Location struct {
	Name    string
	Address string
}

// EventSpec describes an event to create in the organizer's mailbox.
type EventSpec struct {
	Subject    string
	Body       string
	Start      time.Time
	End        time.Time
	Location   Location
	Attendees  []Attendee
	Recurrence *interval.RecurrenceRule
}

// PartialSpec carries only the fields a patch changes.
type PartialSpec struct {
	Subject   utils.Optional[string]
	Start     utils.Optional[time.Time]
	End       utils.Optional[time.Time]
	Attendees utils.Optional[[]Attendee]
}

func (p PartialSpec) IsEmpty() bool {
	return !p.Subject.Set && !p.Start.Set && !p.End.Set && !p.Attendees.Set
}
