package stats

import (
	"context"

	"github.com/roombook/roombook/pkg/aggregator"
)

type stubDayLister struct {
	meetings []aggregator.CanonicalMeeting
	err      error
	date     string
	rooms    []string
}

func (s *stubDayLister) ListDay(_ context.Context, rooms []string, date string) ([]aggregator.CanonicalMeeting, error) {
	s.rooms, s.date = rooms, date
	return s.meetings, s.err
}
