package utils

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (s SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock returns a fixed instant until moved. Safe for concurrent use.
type MockClock struct {
	mu       sync.Mutex
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FixedNow = now
}

// IDGenerator hands out opaque identifiers.
type IDGenerator func() string

// UUIDGenerator issues random UUIDs; they are never reused.
func UUIDGenerator() string {
	return uuid.NewString()
}
