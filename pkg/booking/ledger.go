package booking

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/conflict"
	"github.com/roombook/roombook/pkg/interval"
	log "github.com/sirupsen/logrus"
)

// Ledger keeps the confirmed bookings of every organizer in memory.
//
// Check-then-insert for one organizer runs under that organizer's own lock, so
// two overlapping creates for the same organizer can never both succeed while
// different organizers proceed in parallel. The short-lived mu only guards the
// maps themselves.
type Ledger struct {
	clock utils.Clock
	newID utils.IDGenerator
	locks *keyedMutex

	mu      sync.RWMutex
	buckets map[string][]Booking // organizer key -> bookings ordered by start
	owners  map[string]string    // booking id -> organizer key
}

func NewLedger(clock utils.Clock, newID utils.IDGenerator) *Ledger {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if newID == nil {
		newID = utils.UUIDGenerator
	}
	return &Ledger{
		clock:   clock,
		newID:   newID,
		locks:   newKeyedMutex(),
		buckets: make(map[string][]Booking),
		owners:  make(map[string]string),
	}
}

// Create checks candidate against the organizer's bookings and inserts it with
// a fresh id and creation time. On conflict nothing is inserted.
func (l *Ledger) Create(candidate Booking) (Booking, error) {
	key := OrganizerKey(candidate.OrganizerEmail)
	if key == "" {
		return Booking{}, domain.NewValidationError("organizer email is required")
	}
	if candidate.Window.IsZero() {
		return Booking{}, domain.NewValidationError("booking window is required")
	}

	unlock := l.locks.Lock(key)
	defer unlock()

	if err := l.checkLocked(key, candidate.Window, ""); err != nil {
		return Booking{}, err
	}

	candidate.ID = l.newID()
	candidate.CreatedAt = l.clock.Now()

	l.mu.Lock()
	l.buckets[key] = insertOrdered(l.buckets[key], candidate)
	l.owners[candidate.ID] = key
	l.mu.Unlock()

	log.Debugf("booking %s created for %s at %s", candidate.ID, key, candidate.Window)
	return candidate, nil
}

// Get returns the booking with the given id.
func (l *Ledger) Get(id string) (Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	key, ok := l.owners[id]
	if !ok {
		return Booking{}, domain.NewNotFoundError(fmt.Sprintf("booking %s not found", id))
	}
	for _, b := range l.buckets[key] {
		if b.ID == id {
			return b, nil
		}
	}
	return Booking{}, domain.NewNotFoundError(fmt.Sprintf("booking %s not found", id))
}

// ListForOrganizer returns the organizer's bookings ordered by start time.
func (l *Ledger) ListForOrganizer(email string) []Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.buckets[OrganizerKey(email)])
}

// ListAll returns every booking ordered by start time.
func (l *Ledger) ListAll() []Booking {
	l.mu.RLock()
	all := make([]Booking, 0, len(l.owners))
	for _, bucket := range l.buckets {
		all = append(all, bucket...)
	}
	l.mu.RUnlock()
	slices.SortStableFunc(all, compareBookings)
	return all
}

// Cancel removes the booking and returns what was removed.
func (l *Ledger) Cancel(id string) (Booking, error) {
	key, err := l.ownerOf(id)
	if err != nil {
		return Booking{}, err
	}
	unlock := l.locks.Lock(key)
	defer unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	bucket := l.buckets[key]
	idx := slices.IndexFunc(bucket, func(b Booking) bool { return b.ID == id })
	if idx < 0 {
		return Booking{}, domain.NewNotFoundError(fmt.Sprintf("booking %s not found", id))
	}
	removed := bucket[idx]
	bucket = slices.Delete(bucket, idx, idx+1)
	if len(bucket) == 0 {
		delete(l.buckets, key)
	} else {
		l.buckets[key] = bucket
	}
	delete(l.owners, id)
	log.Debugf("booking %s cancelled for %s", id, key)
	return removed, nil
}

// Modify moves the booking to newWindow and, when title is non-nil, renames
// it. The new window is checked against the organizer's other bookings.
func (l *Ledger) Modify(id string, newWindow interval.Window, title *string) (Booking, error) {
	if newWindow.IsZero() {
		return Booking{}, domain.NewValidationError("booking window is required")
	}
	key, err := l.ownerOf(id)
	if err != nil {
		return Booking{}, err
	}
	unlock := l.locks.Lock(key)
	defer unlock()

	if err := l.checkLocked(key, newWindow, id); err != nil {
		return Booking{}, err
	}

	return l.updateLocked(key, id, func(b *Booking) {
		b.Window = newWindow
		if title != nil {
			b.Title = *title
		}
	})
}

// Restore puts back a previously returned version of a booking without a
// conflict check. It undoes a Modify whose provider-side write failed.
func (l *Ledger) Restore(previous Booking) error {
	key, err := l.ownerOf(previous.ID)
	if err != nil {
		return err
	}
	unlock := l.locks.Lock(key)
	defer unlock()
	_, err = l.updateLocked(key, previous.ID, func(b *Booking) { *b = previous })
	return err
}

// AttachProviderRefs records the provider event and series ids of a booking.
func (l *Ledger) AttachProviderRefs(id, eventID, seriesID string) (Booking, error) {
	key, err := l.ownerOf(id)
	if err != nil {
		return Booking{}, err
	}
	unlock := l.locks.Lock(key)
	defer unlock()
	return l.updateLocked(key, id, func(b *Booking) {
		b.ProviderEventID = eventID
		b.SeriesID = seriesID
	})
}

// FindBySeriesID looks up the organizer's booking linked to a provider series.
func (l *Ledger) FindBySeriesID(organizerEmail, seriesID string) (Booking, bool) {
	if seriesID == "" {
		return Booking{}, false
	}
	return l.find(organizerEmail, func(b Booking) bool { return b.SeriesID == seriesID })
}

// FindByWindow looks up the organizer's booking with the given title and window.
func (l *Ledger) FindByWindow(organizerEmail, title string, w interval.Window) (Booking, bool) {
	return l.find(organizerEmail, func(b Booking) bool {
		return b.Window.Equal(w) && strings.EqualFold(b.Title, title)
	})
}

func (l *Ledger) find(organizerEmail string, match func(Booking) bool) (Booking, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, b := range l.buckets[OrganizerKey(organizerEmail)] {
		if match(b) {
			return b, true
		}
	}
	return Booking{}, false
}

func (l *Ledger) ownerOf(id string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	key, ok := l.owners[id]
	if !ok {
		return "", domain.NewNotFoundError(fmt.Sprintf("booking %s not found", id))
	}
	return key, nil
}

// checkLocked must be called with the organizer lock held.
func (l *Ledger) checkLocked(key string, candidate interval.Window, excludeID string) error {
	l.mu.RLock()
	bucket := l.buckets[key]
	others := make([]interval.Window, 0, len(bucket))
	ids := make([]string, 0, len(bucket))
	for _, b := range bucket {
		if b.ID == excludeID {
			continue
		}
		others = append(others, b.Window)
		ids = append(ids, b.ID)
	}
	l.mu.RUnlock()

	if idx := conflict.First(candidate, others); idx >= 0 {
		return domain.NewConflictError(fmt.Sprintf("%s overlaps booking %s %s", candidate, ids[idx], others[idx]))
	}
	return nil
}

// updateLocked must be called with the organizer lock held.
func (l *Ledger) updateLocked(key, id string, apply func(*Booking)) (Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket := l.buckets[key]
	idx := slices.IndexFunc(bucket, func(b Booking) bool { return b.ID == id })
	if idx < 0 {
		return Booking{}, domain.NewNotFoundError(fmt.Sprintf("booking %s not found", id))
	}
	updated := bucket[idx]
	apply(&updated)
	bucket = slices.Delete(bucket, idx, idx+1)
	l.buckets[key] = insertOrdered(bucket, updated)
	return updated, nil
}

func insertOrdered(bucket []Booking, b Booking) []Booking {
	idx, _ := slices.BinarySearchFunc(bucket, b, func(existing, target Booking) int {
		if c := compareBookings(existing, target); c != 0 {
			return c
		}
		return -1 // equal keys go after existing ones
	})
	return slices.Insert(bucket, idx, b)
}

func compareBookings(a, b Booking) int {
	if c := a.Window.Start().Compare(b.Window.Start()); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
