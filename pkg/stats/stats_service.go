package stats

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/aggregator"
	"github.com/roombook/roombook/pkg/interval"
)

type DayLister interface {
	ListDay(ctx context.Context, roomAddresses []string, date string) ([]aggregator.CanonicalMeeting, error)
}

type StatsService interface {
	DailyRoomStats(ctx context.Context, roomAddresses []string, date string) (DailyStats, error)
}

type StatsServiceImpl struct {
	lister DayLister
	clock  utils.Clock
	loc    *time.Location
}

func NewStatsServiceImpl(lister DayLister, clock utils.Clock, loc *time.Location) *StatsServiceImpl {
	return &StatsServiceImpl{lister: lister, clock: clock, loc: loc}
}

// DailyRoomStats summarizes the rooms that have meetings on date.
func (s *StatsServiceImpl) DailyRoomStats(ctx context.Context, roomAddresses []string, date string) (DailyStats, error) {
	day, err := interval.ParseDateOrToday(date, s.clock.Now(), s.loc)
	if err != nil {
		return DailyStats{}, err
	}
	meetings, err := s.lister.ListDay(ctx, roomAddresses, day.String())
	if err != nil {
		return DailyStats{}, err
	}

	windows := map[string][]interval.Window{}
	byRoom := map[string]*RoomStats{}
	for _, m := range meetings {
		for _, room := range m.Rooms {
			rs, ok := byRoom[room]
			if !ok {
				rs = &RoomStats{Room: room}
				byRoom[room] = rs
			}
			rs.Meetings++
			if m.IsMultiRoom() {
				rs.MultiRoom++
			}
			windows[room] = append(windows[room], m.Window)
		}
	}

	summary := DailyStats{Date: day, TotalMeetings: len(meetings)}
	for room, rs := range byRoom {
		rs.Booked = coveredTime(windows[room])
		summary.TotalBooked += rs.Booked
		summary.Rooms = append(summary.Rooms, *rs)
	}
	slices.SortFunc(summary.Rooms, func(a, b RoomStats) int {
		return strings.Compare(a.Room, b.Room)
	})
	return summary, nil
}

// coveredTime is the length of the union of windows.
func coveredTime(windows []interval.Window) time.Duration {
	slices.SortFunc(windows, func(a, b interval.Window) int {
		return a.Start().Compare(b.Start())
	})
	var total time.Duration
	var curStart, curEnd time.Time
	for i, w := range windows {
		if i == 0 || w.Start().After(curEnd) {
			total += curEnd.Sub(curStart)
			curStart, curEnd = w.Start(), w.End()
			continue
		}
		if w.End().After(curEnd) {
			curEnd = w.End()
		}
	}
	return total + curEnd.Sub(curStart)
}
