package stats

import (
	"time"

	"github.com/roombook/roombook/pkg/interval"
)

// RoomStats is the occupancy of one room over a day.
type RoomStats struct {
	Room     string
	Meetings int
	// MultiRoom counts meetings the room shares with other rooms.
	MultiRoom int
	// Booked is the time covered by at least one meeting; overlapping meetings count once.
	Booked time.Duration
}

type DailyStats struct {
	Date          interval.Date
	Rooms         []RoomStats
	TotalMeetings int
	TotalBooked   time.Duration
}
