package scheduling

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/internal/event_bus"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/aggregator"
	"github.com/roombook/roombook/pkg/booking"
	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/concurrent"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/roombook/roombook/pkg/rooms"
	"github.com/roombook/roombook/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 19800)

var ctx = context.Background()

var (
	roomOne = rooms.Room{Address: "room1@x.com", DisplayName: "Room 1"}
	roomTwo = rooms.Room{Address: "room2@x.com", DisplayName: "Room 2"}

	alice = user.User{Email: "alice@x.com"}
	bob   = user.User{Email: "bob@x.com"}
	root  = user.User{Email: "root@x.com", IsAdmin: true}
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, ist)
}

type fixture struct {
	facade   *Facade
	provider *calendar.MemoryProvider
	ledger   *booking.Ledger
	clock    *utils.MockClock

	mu        sync.Mutex
	published []event_bus.EventType
}

func (f *fixture) events() []event_bus.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event_bus.EventType(nil), f.published...)
}

func counter(prefix string) utils.IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// failingPatchProvider refuses every patch while serving everything else.
type failingPatchProvider struct {
	*calendar.MemoryProvider
	err error
}

func (p failingPatchProvider) PatchEvent(context.Context, string, string, calendar.PartialSpec) error {
	return p.err
}

func setup(t *testing.T, wrap ...func(*calendar.MemoryProvider) calendar.Provider) *fixture {
	t.Helper()
	f := &fixture{
		provider: calendar.NewMemoryProvider(ist, counter("evt")),
		clock:    &utils.MockClock{FixedNow: at(9, 12, 0)},
	}
	f.ledger = booking.NewLedger(f.clock, counter("b"))

	var provider calendar.Provider = f.provider
	for _, w := range wrap {
		provider = w(f.provider)
	}

	bus := event_bus.NewEventBus()
	for _, eventType := range []event_bus.EventType{event_bus.BookingCreatedEvent, event_bus.MeetingCancelledEvent, event_bus.MeetingModifiedEvent} {
		bus.Subscribe(eventType, func(e event_bus.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.published = append(f.published, e.Type)
			return nil
		})
	}

	directory := rooms.NewDirectory([]rooms.Room{roomOne, roomTwo}, nil, time.Minute)
	agg := aggregator.NewAggregator(provider, directory, ist, time.Second, concurrent.NewWorkerPool(4))
	f.facade = NewFacade(f.ledger, agg, provider, directory, f.clock, bus)
	return f
}

func request(organizer, room string, start, end time.Time) BookingRequest {
	return BookingRequest{Title: "Sync", OrganizerEmail: organizer, Room: room, Start: start, End: end}
}

func (f *fixture) book(t *testing.T, req BookingRequest) booking.Booking {
	t.Helper()
	b, err := f.facade.CreateBooking(ctx, req)
	require.NoError(t, err)
	return b
}

func (f *fixture) meetingsOn(t *testing.T, date string) []aggregator.CanonicalMeeting {
	t.Helper()
	meetings, err := f.facade.ListDay(ctx, nil, date)
	require.NoError(t, err)
	return meetings
}

func TestFacade_CreateBooking(t *testing.T) {
	t.Run("should book and then refuse an overlapping booking of the same organizer", func(t *testing.T) {
		f := setup(t)

		created, err := f.facade.CreateBooking(ctx, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Room 1", created.RoomDisplayName)
		assert.Equal(t, "alice", created.OrganizerName)
		assert.NotEmpty(t, created.ProviderEventID)
		assert.NotEmpty(t, created.SeriesID)
		assert.Equal(t, at(9, 12, 0), created.CreatedAt)

		_, err = f.facade.CreateBooking(ctx, request("alice@x.com", "room2@x.com", at(10, 9, 30), at(10, 10, 30)))
		assert.True(t, domain.IsType(err, domain.ErrorTypeConflict), "got %v", err)

		assert.Len(t, f.ledger.ListAll(), 1)
		assert.Len(t, f.meetingsOn(t, "2024-01-10"), 1)
		assert.Equal(t, []event_bus.EventType{event_bus.BookingCreatedEvent}, f.events())
	})

	t.Run("should surface a provider room conflict and withdraw the ledger entry", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))

		_, err := f.facade.CreateBooking(ctx, request("bob@x.com", "Room 1", at(10, 9, 30), at(10, 10, 30)))

		assert.True(t, domain.IsType(err, domain.ErrorTypeRoomConflict), "got %v", err)
		assert.Empty(t, f.ledger.ListForOrganizer("bob@x.com"))
	})

	t.Run("should withdraw the ledger entry when the provider fails", func(t *testing.T) {
		f := setup(t)
		f.provider.FailMailbox("alice@x.com", domain.NewProviderIOError("unavailable"))

		_, err := f.facade.CreateBooking(ctx, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))

		assert.True(t, domain.IsType(err, domain.ErrorTypeProviderIO))
		assert.Empty(t, f.ledger.ListAll())
	})

	t.Run("should resolve rooms by display name and accept unknown room addresses", func(t *testing.T) {
		f := setup(t)

		byName := f.book(t, request("alice@x.com", "room 2", at(10, 9, 0), at(10, 10, 0)))
		unknown := f.book(t, request("alice@x.com", "annex@x.com", at(10, 11, 0), at(10, 12, 0)))

		assert.Equal(t, "room2@x.com", byName.RoomEmail)
		assert.Equal(t, "annex@x.com", unknown.RoomDisplayName)
	})

	t.Run("should reject invalid requests", func(t *testing.T) {
		f := setup(t)
		testCases := []struct {
			name  string
			req   BookingRequest
			field string
		}{
			{"missing organizer", request("", "room1@x.com", at(10, 9, 0), at(10, 10, 0)), "organizerEmail"},
			{"organizer without @", request("alice", "room1@x.com", at(10, 9, 0), at(10, 10, 0)), "organizerEmail"},
			{"missing room", request("alice@x.com", "", at(10, 9, 0), at(10, 10, 0)), "room"},
			{"unknown room name", request("alice@x.com", "Broom closet", at(10, 9, 0), at(10, 10, 0)), "room"},
			{"missing start", request("alice@x.com", "room1@x.com", time.Time{}, at(10, 10, 0)), "start"},
			{"bad attendee", BookingRequest{
				OrganizerEmail: "alice@x.com", Room: "room1@x.com", Start: at(10, 9, 0), End: at(10, 10, 0),
				Attendees: []calendar.Attendee{{Email: "nobody"}},
			}, "attendees[0].email"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.facade.CreateBooking(ctx, tc.req)
				var domainErr *domain.DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, domain.ErrorTypeValidation, domainErr.Type)
				assert.Contains(t, domainErr.Fields, tc.field)
			})
		}

		_, err := f.facade.CreateBooking(ctx, request("alice@x.com", "room1@x.com", at(10, 10, 0), at(10, 9, 0)))
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
		assert.Empty(t, f.ledger.ListAll())
	})

	t.Run("should align a weekly series to its first selected weekday", func(t *testing.T) {
		f := setup(t)
		req := request("alice@x.com", "room1@x.com", at(8, 9, 0), at(8, 10, 0)) // Monday
		req.Recurrence = &interval.RecurrenceRule{
			Pattern:    interval.Weekly,
			WeeklyDays: interval.MaskOf(time.Wednesday),
			Range:      interval.Range{Type: interval.Numbered, Count: 3},
		}

		created := f.book(t, req)

		assert.True(t, created.Window.Start().Equal(at(10, 9, 0)))
		assert.True(t, created.Window.End().Equal(at(10, 10, 0)))
		assert.Equal(t, 1, created.Recurrence.Interval)
		require.Len(t, f.meetingsOn(t, "2024-01-17"), 1)
		assert.Empty(t, f.meetingsOn(t, "2024-01-15"))
		assert.Empty(t, f.meetingsOn(t, "2024-01-31"))
	})

	t.Run("should invite extra attendees once", func(t *testing.T) {
		f := setup(t)
		req := request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0))
		req.OrganizerName = "Alice"
		req.Attendees = []calendar.Attendee{{Email: "bob@x.com"}, {Email: "ALICE@x.com"}}

		created := f.book(t, req)

		event, err := f.provider.FindEventBySeriesID(ctx, "alice@x.com", created.SeriesID)
		require.NoError(t, err)
		assert.Equal(t, []calendar.Attendee{
			{Email: "alice@x.com", Name: "Alice", Role: calendar.RoleRequired},
			{Email: "room1@x.com", Name: "Room 1", Role: calendar.RoleResource},
			{Email: "bob@x.com", Role: calendar.RoleRequired},
		}, event.Attendees)
		assert.Equal(t, "Room 1", event.Location)
	})
}

func TestFacade_ListDay(t *testing.T) {
	t.Run("should merge a meeting held in several rooms", func(t *testing.T) {
		f := setup(t)
		_, err := f.provider.CreateEvent(ctx, "alice@x.com", calendar.EventSpec{
			Subject: "All hands",
			Start:   at(10, 9, 0),
			End:     at(10, 9, 30),
			Attendees: []calendar.Attendee{
				{Email: "alice@x.com", Role: calendar.RoleRequired},
				{Email: roomOne.Address, Name: roomOne.DisplayName, Role: calendar.RoleResource},
				{Email: roomTwo.Address, Name: roomTwo.DisplayName, Role: calendar.RoleResource},
			},
		})
		require.NoError(t, err)
		f.book(t, request("bob@x.com", "room2@x.com", at(10, 14, 0), at(10, 15, 0)))

		meetings := f.meetingsOn(t, "10-01-2024")

		require.Len(t, meetings, 2)
		assert.Equal(t, "All hands", meetings[0].Subject)
		assert.Equal(t, []string{"Room 1", "Room 2"}, meetings[0].Rooms)
		assert.True(t, meetings[0].IsMultiRoom())
		assert.Equal(t, []string{"Room 2"}, meetings[1].Rooms)

		meetings, err = f.facade.ListDay(ctx, []string{roomOne.Address}, "2024-01-10")
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, []string{"Room 1"}, meetings[0].Rooms)
		assert.False(t, meetings[0].IsMultiRoom())
	})

	t.Run("should only query the requested rooms", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		f.book(t, request("bob@x.com", "room2@x.com", at(10, 9, 0), at(10, 10, 0)))

		meetings, err := f.facade.ListDay(ctx, []string{"ROOM2@x.com"}, "2024-01-10")

		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, "bob@x.com", meetings[0].OrganizerEmail)
	})

	t.Run("should default to today", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(9, 15, 0), at(9, 16, 0)))

		assert.Len(t, f.meetingsOn(t, ""), 1)
	})

	t.Run("should reject bad input", func(t *testing.T) {
		f := setup(t)

		_, err := f.facade.ListDay(ctx, []string{"room1"}, "2024-01-10")
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

		_, err = f.facade.ListDay(ctx, nil, "tomorrow")
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	})

	t.Run("should fail on revoked credentials", func(t *testing.T) {
		f := setup(t)
		f.provider.FailAuth(domain.NewProviderAuthError("token revoked"))

		_, err := f.facade.ListDay(ctx, nil, "2024-01-10")

		assert.True(t, domain.IsType(err, domain.ErrorTypeProviderAuth))
	})
}

func TestFacade_CancelMeeting(t *testing.T) {
	t.Run("should cancel the provider event and the booking", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey

		err := f.facade.CancelMeeting(ctx, key, "alice@x.com", alice)

		require.NoError(t, err)
		assert.Empty(t, f.meetingsOn(t, "2024-01-10"))
		assert.Empty(t, f.ledger.ListAll())
		assert.Equal(t, []event_bus.EventType{event_bus.BookingCreatedEvent, event_bus.MeetingCancelledEvent}, f.events())
	})

	t.Run("should only let the organizer or an administrator cancel", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey

		err := f.facade.CancelMeeting(ctx, key, "alice@x.com", bob)
		assert.True(t, domain.IsType(err, domain.ErrorTypeAuthorization))

		err = f.facade.CancelMeeting(ctx, key, "alice@x.com", user.User{})
		assert.True(t, domain.IsType(err, domain.ErrorTypeAuthorization))

		require.NoError(t, f.facade.CancelMeeting(ctx, key, "alice@x.com", root))
		assert.Empty(t, f.ledger.ListAll())
	})

	t.Run("should keep completed meetings away from regular users", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey
		f.clock.SetNow(at(10, 10, 0))

		err := f.facade.CancelMeeting(ctx, key, "alice@x.com", alice)
		assert.True(t, domain.IsType(err, domain.ErrorTypeAuthorization))
		assert.Len(t, f.ledger.ListAll(), 1)

		require.NoError(t, f.facade.CancelMeeting(ctx, key, "alice@x.com", root))
	})

	t.Run("should report unknown meetings", func(t *testing.T) {
		f := setup(t)
		key, err := aggregator.SeriesKey("missing").Encode()
		require.NoError(t, err)

		err = f.facade.CancelMeeting(ctx, key, "alice@x.com", alice)
		assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))

		err = f.facade.CancelMeeting(ctx, "not-a-key", "alice@x.com", alice)
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	})

	t.Run("should locate meetings without a series id by subject and window", func(t *testing.T) {
		f := setup(t)
		adhoc := calendar.RawEvent{
			Subject:        "Adhoc",
			Start:          "2024-01-10T16:00:00",
			End:            "2024-01-10T16:30:00",
			Location:       "Room 1",
			OrganizerEmail: "alice@x.com",
		}
		require.NoError(t, f.provider.Seed("alice@x.com", adhoc))
		require.NoError(t, f.provider.Seed("alice@x.com", calendar.RawEvent{
			Subject: "Adhoc", Start: "2024-01-10T15:30:00", End: "2024-01-10T16:30:00", OrganizerEmail: "alice@x.com",
		}))
		require.NoError(t, f.provider.Seed("room1@x.com", adhoc))
		meetings := f.meetingsOn(t, "2024-01-10")
		require.Len(t, meetings, 1)

		require.NoError(t, f.facade.CancelMeeting(ctx, meetings[0].IdentityKey, "alice@x.com", alice))

		left, err := f.provider.ListEvents(ctx, "alice@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, "2024-01-10T15:30:00", left[0].Start)
	})
}

func TestFacade_ModifyMeeting(t *testing.T) {
	t.Run("should move the meeting and its booking", func(t *testing.T) {
		f := setup(t)
		created := f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey

		err := f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, Patch{
			Subject: utils.Some("Planning"),
			Start:   utils.Some(at(10, 11, 0)),
			End:     utils.Some(at(10, 12, 0)),
		})

		require.NoError(t, err)
		meetings := f.meetingsOn(t, "2024-01-10")
		require.Len(t, meetings, 1)
		assert.Equal(t, "Planning", meetings[0].Subject)
		assert.Equal(t, "2024-01-10T11:00:00", meetings[0].StartLocal)
		assert.Equal(t, key, meetings[0].IdentityKey)

		b, err := f.ledger.Get(created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Planning", b.Title)
		assert.True(t, b.Window.Start().Equal(at(10, 11, 0)))
		assert.Contains(t, f.events(), event_bus.MeetingModifiedEvent)
	})

	t.Run("should change only the end when only the end is given", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey

		require.NoError(t, f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, Patch{End: utils.Some(at(10, 9, 45))}))

		m := f.meetingsOn(t, "2024-01-10")[0]
		assert.Equal(t, "2024-01-10T09:00:00", m.StartLocal)
		assert.Equal(t, "2024-01-10T09:45:00", m.EndLocal)
		assert.Equal(t, "Sync", m.Subject)
	})

	t.Run("should refuse a window clashing with the organizer's other bookings", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		f.book(t, request("alice@x.com", "room2@x.com", at(10, 11, 0), at(10, 12, 0)))
		later := f.meetingsOn(t, "2024-01-10")[1]

		err := f.facade.ModifyMeeting(ctx, later.IdentityKey, "alice@x.com", alice, Patch{
			Start: utils.Some(at(10, 9, 30)),
			End:   utils.Some(at(10, 10, 30)),
		})

		assert.True(t, domain.IsType(err, domain.ErrorTypeConflict))
		assert.Equal(t, "2024-01-10T11:00:00", f.meetingsOn(t, "2024-01-10")[1].StartLocal)
	})

	t.Run("should restore the booking when the provider refuses the change", func(t *testing.T) {
		f := setup(t, func(p *calendar.MemoryProvider) calendar.Provider {
			return failingPatchProvider{MemoryProvider: p, err: domain.NewProviderIOError("write failed")}
		})
		created := f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey

		err := f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, Patch{Start: utils.Some(at(10, 8, 0))})

		assert.True(t, domain.IsType(err, domain.ErrorTypeProviderIO))
		b, err := f.ledger.Get(created.ID)
		require.NoError(t, err)
		assert.True(t, b.Window.Start().Equal(at(10, 9, 0)))
		assert.NotContains(t, f.events(), event_bus.MeetingModifiedEvent)
	})

	t.Run("should replace attendees but keep organizer and rooms", func(t *testing.T) {
		f := setup(t)
		req := request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0))
		req.Attendees = []calendar.Attendee{{Email: "bob@x.com"}}
		created := f.book(t, req)
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey

		err := f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, Patch{
			Attendees: utils.Some([]calendar.Attendee{{Email: "carol@x.com", Role: calendar.RoleOptional}}),
		})

		require.NoError(t, err)
		event, err := f.provider.FindEventBySeriesID(ctx, "alice@x.com", created.SeriesID)
		require.NoError(t, err)
		var emails []string
		for _, a := range event.Attendees {
			emails = append(emails, a.Email)
		}
		assert.Equal(t, []string{"alice@x.com", "room1@x.com", "carol@x.com"}, emails)
	})

	t.Run("should reject empty and invalid patches", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey

		err := f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, Patch{})
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

		err = f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, Patch{End: utils.Some(at(10, 8, 0))})
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

		err = f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, Patch{
			Attendees: utils.Some([]calendar.Attendee{{Email: "carol"}}),
		})
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	})

	t.Run("should apply the same authorization rule as cancel", func(t *testing.T) {
		f := setup(t)
		f.book(t, request("alice@x.com", "room1@x.com", at(10, 9, 0), at(10, 10, 0)))
		key := f.meetingsOn(t, "2024-01-10")[0].IdentityKey
		patch := Patch{Subject: utils.Some("Hijacked")}

		err := f.facade.ModifyMeeting(ctx, key, "alice@x.com", bob, patch)
		assert.True(t, domain.IsType(err, domain.ErrorTypeAuthorization))

		f.clock.SetNow(at(11, 0, 0))
		err = f.facade.ModifyMeeting(ctx, key, "alice@x.com", alice, patch)
		assert.True(t, domain.IsType(err, domain.ErrorTypeAuthorization))

		require.NoError(t, f.facade.ModifyMeeting(ctx, key, "alice@x.com", root, Patch{Subject: utils.Some("")}))
		assert.Equal(t, aggregator.NoTitle, f.meetingsOn(t, "2024-01-10")[0].Subject)
	})
}

func TestFacade_ListBookings(t *testing.T) {
	f := setup(t)
	f.book(t, request("bob@x.com", "room1@x.com", at(10, 11, 0), at(10, 12, 0)))
	f.book(t, request("alice@x.com", "room2@x.com", at(10, 9, 0), at(10, 10, 0)))

	assert.Len(t, f.facade.ListBookings(""), 2)
	assert.Equal(t, "alice@x.com", f.facade.ListBookings("")[0].OrganizerEmail)
	require.Len(t, f.facade.ListBookings("BOB@x.com"), 1)
}
