// Package aggregator merges the per-room views of a day's calendar into one
// list of meetings, folding the copies of a meeting booked in several rooms.
package aggregator

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/concurrent"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/roombook/roombook/pkg/rooms"
	log "github.com/sirupsen/logrus"
)

// CanonicalMeeting is one logical meeting with every room it occupies.
type CanonicalMeeting struct {
	IdentityKey    string
	SeriesID       string
	Subject        string
	Window         interval.Window
	StartLocal     string
	EndLocal       string
	Organizer      string
	OrganizerEmail string
	Rooms          []string
	AttendeeCount  int
}

func (m CanonicalMeeting) IsMultiRoom() bool {
	return len(m.Rooms) > 1
}

// RoomTable supplies the known rooms used to recognize room mentions.
type RoomTable interface {
	List(ctx context.Context) ([]rooms.Room, error)
}

type Aggregator struct {
	provider       calendar.Provider
	known          RoomTable
	loc            *time.Location
	mailboxTimeout time.Duration
	pool           *concurrent.WorkerPool
}

func NewAggregator(provider calendar.Provider, known RoomTable, loc *time.Location, mailboxTimeout time.Duration, pool *concurrent.WorkerPool) *Aggregator {
	if mailboxTimeout <= 0 {
		mailboxTimeout = 10 * time.Second
	}
	if pool == nil {
		pool = concurrent.NewWorkerPool(8)
	}
	return &Aggregator{
		provider:       provider,
		known:          known,
		loc:            loc,
		mailboxTimeout: mailboxTimeout,
		pool:           pool,
	}
}

func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// ListMeetings queries every mailbox for day concurrently and returns the
// merged meetings ordered by start. A mailbox whose query fails or times out
// contributes nothing; an authentication failure fails the whole call.
func (a *Aggregator) ListMeetings(ctx context.Context, mailboxes []rooms.Room, day interval.Date) ([]CanonicalMeeting, error) {
	knownRooms, err := a.knownRooms(ctx, mailboxes)
	if err != nil {
		return nil, err
	}
	bounds := day.Bounds(a.loc)
	startLocal := interval.FormatLocal(bounds.Start(), a.loc)
	endLocal := interval.FormatLocal(bounds.End(), a.loc)

	results := make([][]calendar.RawEvent, len(mailboxes))
	tasks := make([]func(context.Context) error, len(mailboxes))
	for i, mailbox := range mailboxes {
		tasks[i] = func(ctx context.Context) error {
			events, err := a.queryMailbox(ctx, mailbox.Address, startLocal, endLocal)
			results[i] = events
			return err
		}
	}
	errs := a.pool.RunAll(ctx, tasks...)

	if err := ctx.Err(); err != nil {
		return nil, domain.NewProviderIOError(fmt.Sprintf("listing meetings for %s did not finish in time", day), err)
	}
	for i, err := range errs {
		if err == nil {
			continue
		}
		if domain.IsType(err, domain.ErrorTypeProviderAuth) {
			log.Errorf("calendar provider rejected credentials while reading %s: %v", mailboxes[i].Address, err)
			return nil, domain.NewProviderAuthError("calendar provider rejected credentials", err)
		}
		log.Warnf("skipping mailbox %s for %s: %v", mailboxes[i].Address, day, err)
	}

	var normalized []normalizedEvent
	for i, mailbox := range mailboxes {
		for _, raw := range results[i] {
			ev, ok := a.normalize(raw, mailbox, day, knownRooms)
			if ok {
				normalized = append(normalized, ev)
			}
		}
	}
	return group(normalized)
}

// queryMailbox runs one provider read under its own timeout. The read runs in
// its own goroutine so a provider ignoring ctx cannot hold up the join.
func (a *Aggregator) queryMailbox(ctx context.Context, mailbox, startLocal, endLocal string) ([]calendar.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, a.mailboxTimeout)
	defer cancel()

	type result struct {
		events []calendar.RawEvent
		err    error
	}
	done := make(chan result, 1)
	go func() {
		events, err := a.provider.ListEvents(ctx, mailbox, startLocal, endLocal)
		done <- result{events, err}
	}()

	select {
	case r := <-done:
		return r.events, r.err
	case <-ctx.Done():
		return nil, domain.NewProviderIOError(fmt.Sprintf("query for %s timed out", mailbox), ctx.Err())
	}
}

// knownRooms maps lower-cased display names and addresses to display names.
func (a *Aggregator) knownRooms(ctx context.Context, mailboxes []rooms.Room) (roomIndex, error) {
	index := roomIndex{byName: map[string]string{}, byAddress: map[string]string{}}
	var table []rooms.Room
	if a.known != nil {
		var err error
		table, err = a.known.List(ctx)
		if err != nil {
			return index, err
		}
	}
	for _, r := range slices.Concat(table, mailboxes) {
		if r.DisplayName == "" {
			continue
		}
		index.byName[strings.ToLower(r.DisplayName)] = r.DisplayName
		if r.Address != "" {
			index.byAddress[strings.ToLower(r.Address)] = r.DisplayName
		}
	}
	return index, nil
}

type roomIndex struct {
	byName    map[string]string
	byAddress map[string]string
}

func (r roomIndex) name(candidate string) (string, bool) {
	name, ok := r.byName[strings.ToLower(strings.TrimSpace(candidate))]
	return name, ok
}

// names resolves a location string. Calendars join the names of several
// booked rooms with ", ", so the string is split only when it is not a room
// name itself and every part is one.
func (r roomIndex) names(location string) []string {
	if name, ok := r.name(location); ok {
		return []string{name}
	}
	parts := strings.Split(location, ", ")
	if len(parts) < 2 {
		return nil
	}
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name, ok := r.name(part)
		if !ok {
			return nil
		}
		names = append(names, name)
	}
	return names
}

func (r roomIndex) address(candidate string) (string, bool) {
	name, ok := r.byAddress[strings.ToLower(strings.TrimSpace(candidate))]
	return name, ok
}
