package booking

import (
	"strings"
	"time"

	"github.com/roombook/roombook/pkg/interval"
)

// Booking is a confirmed reservation owned by the Ledger.
type Booking struct {
	ID              string
	Title           string
	Window          interval.Window
	OrganizerEmail  string
	OrganizerName   string
	RoomEmail       string
	RoomDisplayName string
	CreatedAt       time.Time
	Recurrence      *interval.RecurrenceRule

	// Provider-side references, known once the calendar service accepted the event.
	ProviderEventID string
	SeriesID        string
}

// OrganizerKey is the case-insensitive key bookings are grouped under.
func OrganizerKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
