package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 19800)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, ist)
}

func specFor(subject string, start, end time.Time, rooms ...string) EventSpec {
	attendees := []Attendee{{Email: "alice@x.com", Name: "alice", Role: RoleRequired}}
	for _, r := range rooms {
		attendees = append(attendees, Attendee{Email: r, Name: r, Role: RoleResource})
	}
	return EventSpec{Subject: subject, Body: subject, Start: start, End: end, Attendees: attendees}
}

func TestMemoryProvider_CreateCopiesIntoRoomMailboxes(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	ctx := context.Background()

	created, err := p.CreateEvent(ctx, "alice@x.com", specFor("Sync", at(10, 9, 0), at(10, 9, 30), "roomA@x.com", "roomB@x.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.SeriesID)
	assert.Equal(t, "2024-01-10T09:00:00", created.Start)
	assert.Equal(t, "alice", created.OrganizerName)

	for _, mailbox := range []string{"alice@x.com", "roomA@x.com", "ROOMB@x.com"} {
		events, err := p.ListEvents(ctx, mailbox, "2024-01-10T00:00:00", "2024-01-11T00:00:00")
		require.NoError(t, err)
		require.Len(t, events, 1, mailbox)
		assert.Equal(t, created.SeriesID, events[0].SeriesID)
		assert.Equal(t, "Sync", events[0].Subject)
	}
}

func TestMemoryProvider_RoomConflict(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	ctx := context.Background()
	_, err := p.CreateEvent(ctx, "alice@x.com", specFor("Sync", at(10, 9, 0), at(10, 10, 0), "roomA@x.com"))
	require.NoError(t, err)

	_, err = p.CreateEvent(ctx, "bob@x.com", specFor("Other", at(10, 9, 30), at(10, 10, 30), "roomA@x.com"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeRoomConflict))

	_, err = p.CreateEvent(ctx, "bob@x.com", specFor("After", at(10, 10, 0), at(10, 11, 0), "roomA@x.com"))
	assert.NoError(t, err)
}

func TestMemoryProvider_ExpandsWeeklySeries(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	ctx := context.Background()
	spec := specFor("Weekly", at(1, 9, 0), at(1, 10, 0), "roomA@x.com") // Monday
	spec.Recurrence = &interval.RecurrenceRule{
		Pattern:    interval.Weekly,
		WeeklyDays: interval.MaskOf(time.Monday, time.Wednesday),
		Range:      interval.Range{Type: interval.Numbered, Count: 4},
	}
	_, err := p.CreateEvent(ctx, "alice@x.com", spec)
	require.NoError(t, err)

	events, err := p.ListEvents(ctx, "roomA@x.com", "2024-01-01T00:00:00", "2024-02-01T00:00:00")
	require.NoError(t, err)
	var starts []string
	for _, e := range events {
		starts = append(starts, e.Start)
	}
	assert.Equal(t, []string{
		"2024-01-01T09:00:00",
		"2024-01-03T09:00:00",
		"2024-01-08T09:00:00",
		"2024-01-10T09:00:00",
	}, starts)

	day, err := p.ListEvents(ctx, "roomA@x.com", "2024-01-08T00:00:00", "2024-01-09T00:00:00")
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "2024-01-08T10:00:00", day[0].End)
}

func TestMemoryProvider_DeleteRemovesAllCopies(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	ctx := context.Background()
	created, err := p.CreateEvent(ctx, "alice@x.com", specFor("Sync", at(10, 9, 0), at(10, 9, 30), "roomA@x.com"))
	require.NoError(t, err)

	found, err := p.FindEventBySeriesID(ctx, "alice@x.com", created.SeriesID)
	require.NoError(t, err)
	require.NoError(t, p.DeleteEvent(ctx, "alice@x.com", found.ID))

	events, err := p.ListEvents(ctx, "roomA@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = p.FindEventBySeriesID(ctx, "alice@x.com", created.SeriesID)
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
	assert.True(t, domain.IsType(p.DeleteEvent(ctx, "alice@x.com", found.ID), domain.ErrorTypeNotFound))
}

func TestMemoryProvider_PatchAppliesOnlySetFields(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	ctx := context.Background()
	created, err := p.CreateEvent(ctx, "alice@x.com", specFor("Sync", at(10, 9, 0), at(10, 9, 30), "roomA@x.com"))
	require.NoError(t, err)

	err = p.PatchEvent(ctx, "alice@x.com", created.ID, PartialSpec{
		Subject: utils.Some("Renamed"),
		End:     utils.Some(at(10, 10, 0)),
	})
	require.NoError(t, err)

	events, err := p.ListEvents(ctx, "roomA@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Renamed", events[0].Subject)
	assert.Equal(t, "2024-01-10T09:00:00", events[0].Start)
	assert.Equal(t, "2024-01-10T10:00:00", events[0].End)
	assert.Len(t, events[0].Attendees, 2)

	err = p.PatchEvent(ctx, "alice@x.com", created.ID, PartialSpec{End: utils.Some(at(10, 8, 0))})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestMemoryProvider_InjectedFailures(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	p.FailMailbox("roomA@x.com", boom)
	_, err := p.ListEvents(ctx, "roomA@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")
	assert.ErrorIs(t, err, boom)

	p.FailMailbox("roomA@x.com", nil)
	_, err = p.ListEvents(ctx, "roomA@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")
	assert.NoError(t, err)

	p.FailAuth(domain.NewProviderAuthError("token expired"))
	_, err = p.ListEvents(ctx, "roomB@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")
	assert.True(t, domain.IsType(err, domain.ErrorTypeProviderAuth))
}

func TestMemoryProvider_LatencyHonorsCancellation(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	p.SetLatency("roomA@x.com", time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.ListEvents(ctx, "roomA@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")

	assert.True(t, domain.IsType(err, domain.ErrorTypeProviderIO))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryProvider_Seed(t *testing.T) {
	p := NewMemoryProvider(ist, nil)
	require.NoError(t, p.Seed("roomA@x.com", RawEvent{Subject: "Imported", Start: "2024-01-10T11:00:00", End: "2024-01-10T12:00:00"}))
	assert.Error(t, p.Seed("roomA@x.com", RawEvent{Start: "not a time", End: "2024-01-10T12:00:00"}))

	events, err := p.ListEvents(context.Background(), "roomA@x.com", "2024-01-10T00:00:00", "2024-01-11T00:00:00")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Empty(t, events[0].SeriesID)
}
