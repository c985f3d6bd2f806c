package calendar

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/interval"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// MemoryProvider is a process-local calendar service. Creating an event stores
// one copy in the organizer mailbox and one in every resource attendee mailbox,
// all sharing a series id. Series are expanded with rrule on listing.
type MemoryProvider struct {
	loc   *time.Location
	newID utils.IDGenerator

	mu       sync.RWMutex
	events   map[string][]*storedEvent // mailbox key -> events
	failures map[string]error          // mailbox key -> injected error
	latency  map[string]time.Duration
	authErr  error
}

type storedEvent struct {
	raw        RawEvent
	start      time.Time
	end        time.Time
	recurrence *interval.RecurrenceRule
}

func NewMemoryProvider(loc *time.Location, newID utils.IDGenerator) *MemoryProvider {
	if newID == nil {
		newID = utils.UUIDGenerator
	}
	return &MemoryProvider{
		loc:      loc,
		newID:    newID,
		events:   make(map[string][]*storedEvent),
		failures: make(map[string]error),
		latency:  make(map[string]time.Duration),
	}
}

func mailboxKey(mailbox string) string {
	return strings.ToLower(strings.TrimSpace(mailbox))
}

func (p *MemoryProvider) ListEvents(ctx context.Context, mailbox string, windowStartLocal string, windowEndLocal string) ([]RawEvent, error) {
	if err := p.before(ctx, mailbox); err != nil {
		return nil, err
	}
	from, err := interval.ParseLocal(windowStartLocal, p.loc)
	if err != nil {
		return nil, domain.NewValidationError("invalid window start", err)
	}
	to, err := interval.ParseLocal(windowEndLocal, p.loc)
	if err != nil {
		return nil, domain.NewValidationError("invalid window end", err)
	}
	window, err := interval.New(from, to)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []RawEvent
	for _, e := range p.events[mailboxKey(mailbox)] {
		occurrences, err := e.occurrences(window)
		if err != nil {
			return nil, domain.NewProviderIOError(fmt.Sprintf("failed to expand series of event %s", e.raw.ID), err)
		}
		for _, start := range occurrences {
			raw := e.raw
			raw.Start = interval.FormatLocal(start, p.loc)
			raw.End = interval.FormatLocal(start.Add(e.end.Sub(e.start)), p.loc)
			raw.Locations = slices.Clone(e.raw.Locations)
			raw.Attendees = slices.Clone(e.raw.Attendees)
			result = append(result, raw)
		}
	}
	slices.SortStableFunc(result, func(a, b RawEvent) int {
		return strings.Compare(a.Start, b.Start)
	})
	return result, nil
}

// occurrences returns the starts of the event's occurrences overlapping w.
func (e *storedEvent) occurrences(w interval.Window) ([]time.Time, error) {
	duration := e.end.Sub(e.start)
	overlaps := func(start time.Time) bool {
		return start.Before(w.End()) && w.Start().Before(start.Add(duration))
	}
	if e.recurrence == nil {
		if overlaps(e.start) {
			return []time.Time{e.start}, nil
		}
		return nil, nil
	}
	opt, err := e.recurrence.ROption(e.start)
	if err != nil {
		return nil, err
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}
	var starts []time.Time
	for _, start := range rule.Between(w.Start().Add(-duration), w.End(), true) {
		if overlaps(start) {
			starts = append(starts, start)
		}
	}
	return starts, nil
}

func (p *MemoryProvider) CreateEvent(ctx context.Context, organizerMailbox string, spec EventSpec) (RawEvent, error) {
	if err := p.before(ctx, organizerMailbox); err != nil {
		return RawEvent{}, err
	}
	window, err := interval.New(spec.Start, spec.End)
	if err != nil {
		return RawEvent{}, err
	}
	if spec.Recurrence != nil {
		if err := spec.Recurrence.Validate(spec.Start); err != nil {
			return RawEvent{}, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var resources []string
	for _, a := range spec.Attendees {
		if a.Role == RoleResource {
			resources = append(resources, a.Email)
		}
	}
	for _, room := range resources {
		if err := p.checkRoomLocked(room, window); err != nil {
			return RawEvent{}, err
		}
	}

	seriesID := p.newID()
	raw := RawEvent{
		SeriesID:       seriesID,
		Subject:        spec.Subject,
		Start:          interval.FormatLocal(spec.Start, p.loc),
		End:            interval.FormatLocal(spec.End, p.loc),
		Location:       spec.Location.Name,
		Attendees:      slices.Clone(spec.Attendees),
		OrganizerEmail: organizerMailbox,
	}
	for _, a := range spec.Attendees {
		if strings.EqualFold(a.Email, organizerMailbox) {
			raw.OrganizerName = a.Name
		}
	}

	var created RawEvent
	for i, mailbox := range append([]string{organizerMailbox}, resources...) {
		copyOf := raw
		copyOf.ID = p.newID()
		p.events[mailboxKey(mailbox)] = append(p.events[mailboxKey(mailbox)], &storedEvent{
			raw:        copyOf,
			start:      spec.Start.In(p.loc),
			end:        spec.End.In(p.loc),
			recurrence: spec.Recurrence,
		})
		if i == 0 {
			created = copyOf
		}
	}
	log.Tracef("memory provider: created %q for %s in %d mailboxes", spec.Subject, organizerMailbox, len(resources)+1)
	return created, nil
}

// checkRoomLocked rejects a window overlapping any event already in the room
// mailbox. Only the first occurrence of the new event is checked.
func (p *MemoryProvider) checkRoomLocked(room string, w interval.Window) error {
	for _, e := range p.events[mailboxKey(room)] {
		occurrences, err := e.occurrences(w)
		if err != nil {
			return domain.NewProviderIOError("failed to expand existing series", err)
		}
		if len(occurrences) > 0 {
			return domain.NewRoomConflictError(fmt.Sprintf("room %s is already booked for %q at %s", room, e.raw.Subject, w))
		}
	}
	return nil
}

func (p *MemoryProvider) FindEventBySeriesID(ctx context.Context, mailbox string, seriesID string) (RawEvent, error) {
	if err := p.before(ctx, mailbox); err != nil {
		return RawEvent{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.events[mailboxKey(mailbox)] {
		if e.raw.SeriesID == seriesID {
			return e.raw, nil
		}
	}
	return RawEvent{}, domain.NewNotFoundError(fmt.Sprintf("no event with series %s in %s", seriesID, mailbox))
}

// DeleteEvent removes the event and every mailbox copy of its series.
func (p *MemoryProvider) DeleteEvent(ctx context.Context, mailbox string, eventID string) error {
	if err := p.before(ctx, mailbox); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	target, err := p.findLocked(mailbox, eventID)
	if err != nil {
		return err
	}
	p.forSeriesLocked(target, func(key string, idx int) {
		p.events[key] = slices.Delete(p.events[key], idx, idx+1)
	})
	return nil
}

// PatchEvent applies the set fields to the event and every mailbox copy of its series.
func (p *MemoryProvider) PatchEvent(ctx context.Context, mailbox string, eventID string, patch PartialSpec) error {
	if err := p.before(ctx, mailbox); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	target, err := p.findLocked(mailbox, eventID)
	if err != nil {
		return err
	}
	start := patch.Start.Get(target.start).In(p.loc)
	end := patch.End.Get(target.end).In(p.loc)
	if _, err := interval.New(start, end); err != nil {
		return err
	}
	p.forSeriesLocked(target, func(key string, idx int) {
		e := p.events[key][idx]
		e.start, e.end = start, end
		e.raw.Start = interval.FormatLocal(start, p.loc)
		e.raw.End = interval.FormatLocal(end, p.loc)
		if patch.Subject.Set {
			e.raw.Subject = patch.Subject.Value
		}
		if patch.Attendees.Set {
			e.raw.Attendees = slices.Clone(patch.Attendees.Value)
		}
	})
	return nil
}

func (p *MemoryProvider) findLocked(mailbox, eventID string) (*storedEvent, error) {
	for _, e := range p.events[mailboxKey(mailbox)] {
		if e.raw.ID == eventID {
			return e, nil
		}
	}
	return nil, domain.NewNotFoundError(fmt.Sprintf("no event %s in %s", eventID, mailbox))
}

// forSeriesLocked calls fn for the target and its copies in other mailboxes.
// Indexes are visited from the back so fn may delete.
func (p *MemoryProvider) forSeriesLocked(target *storedEvent, fn func(key string, idx int)) {
	for key, events := range p.events {
		for idx := len(events) - 1; idx >= 0; idx-- {
			e := events[idx]
			if e == target || (target.raw.SeriesID != "" && e.raw.SeriesID == target.raw.SeriesID) {
				fn(key, idx)
			}
		}
	}
}

func (p *MemoryProvider) before(ctx context.Context, mailbox string) error {
	p.mu.RLock()
	authErr := p.authErr
	failure := p.failures[mailboxKey(mailbox)]
	delay := p.latency[mailboxKey(mailbox)]
	p.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.NewProviderIOError(fmt.Sprintf("request for %s timed out", mailbox), ctx.Err())
		}
	}
	if authErr != nil {
		return authErr
	}
	return failure
}

// Seed stores an event as-is in one mailbox. Start and End must be local timestamps.
func (p *MemoryProvider) Seed(mailbox string, event RawEvent) error {
	start, err := interval.ParseLocal(event.Start, p.loc)
	if err != nil {
		return err
	}
	end, err := interval.ParseLocal(event.End, p.loc)
	if err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = p.newID()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[mailboxKey(mailbox)] = append(p.events[mailboxKey(mailbox)], &storedEvent{raw: event, start: start, end: end})
	return nil
}

// FailMailbox makes every call against mailbox return err; nil clears it.
func (p *MemoryProvider) FailMailbox(mailbox string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, mailboxKey(mailbox))
		return
	}
	p.failures[mailboxKey(mailbox)] = err
}

// SetLatency delays every call against mailbox by d, honoring cancellation.
func (p *MemoryProvider) SetLatency(mailbox string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency[mailboxKey(mailbox)] = d
}

// FailAuth makes every call fail with err, mimicking revoked credentials.
func (p *MemoryProvider) FailAuth(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authErr = err
}

func (p *MemoryProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make(map[string][]*storedEvent)
	p.failures = make(map[string]error)
	p.latency = make(map[string]time.Duration)
	p.authErr = nil
}
