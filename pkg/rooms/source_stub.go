package rooms

import (
	"context"
	"sync"
)

// StubSource is a Source serving a fixed list and counting calls.
type StubSource struct {
	mu    sync.Mutex
	Rooms []Room
	Err   error
	Calls int
}

func (s *StubSource) ListRooms(_ context.Context) ([]Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]Room(nil), s.Rooms...), nil
}
