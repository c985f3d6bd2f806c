package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/pkg/aggregator"
	"github.com/roombook/roombook/pkg/booking"
	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/roombook/roombook/pkg/user"
	log "github.com/sirupsen/logrus"
)

type located struct {
	key    aggregator.IdentityKey
	event  calendar.RawEvent
	window interval.Window
}

// locateForChange finds the organizer's provider event for identityKey after
// checking that caller may change it: only the organizer or an administrator
// may, and regular users cannot touch a meeting that has already ended.
func (f *Facade) locateForChange(ctx context.Context, identityKey, organizerEmail string, caller user.User) (located, error) {
	if !isMailbox(organizerEmail) {
		return located{}, domain.NewFieldValidationError(map[string]string{"organizer": "a valid email address is required"})
	}
	if caller.Email == "" {
		return located{}, user.ErrNoUser
	}
	if !caller.IsAdmin && !caller.Is(organizerEmail) {
		return located{}, domain.NewAuthorizationError("only the organizer or an administrator may change this meeting")
	}

	key, err := aggregator.ParseIdentityKey(identityKey)
	if err != nil {
		return located{}, err
	}

	var target located
	switch key.Kind {
	case aggregator.KeySeries:
		target, err = f.findBySeries(ctx, organizerEmail, key)
	default:
		target, err = f.findByFallback(ctx, organizerEmail, key)
	}
	if err != nil {
		return located{}, err
	}

	if !caller.IsAdmin && !target.window.End().After(f.clock.Now()) {
		return located{}, domain.NewAuthorizationError("meeting has already ended")
	}
	return target, nil
}

func (f *Facade) findBySeries(ctx context.Context, organizerEmail string, key aggregator.IdentityKey) (located, error) {
	event, err := f.provider.FindEventBySeriesID(ctx, organizerEmail, key.SeriesID)
	if err != nil {
		return located{}, err
	}
	w, err := f.eventWindow(event)
	if err != nil {
		return located{}, domain.NewProviderIOError(fmt.Sprintf("event %s has an unreadable window", event.ID), err)
	}
	return located{key: key, event: event, window: w}, nil
}

// findByFallback lists the organizer mailbox over the key's window and picks
// the event with the same subject and window.
func (f *Facade) findByFallback(ctx context.Context, organizerEmail string, key aggregator.IdentityKey) (located, error) {
	w, err := key.Window(f.loc)
	if err != nil {
		return located{}, err
	}
	events, err := f.provider.ListEvents(ctx, organizerEmail, key.Start, key.End)
	if err != nil {
		return located{}, err
	}
	for _, event := range events {
		subject := strings.TrimSpace(event.Subject)
		if subject == "" {
			subject = aggregator.NoTitle
		}
		if subject != key.Subject {
			continue
		}
		if key.Organizer != "" && event.OrganizerEmail != "" && !strings.EqualFold(event.OrganizerEmail, key.Organizer) {
			continue
		}
		ew, err := f.eventWindow(event)
		if err != nil {
			log.Warnf("skipping event %s of %s: %v", event.ID, organizerEmail, err)
			continue
		}
		if ew.Equal(w) {
			return located{key: key, event: event, window: ew}, nil
		}
	}
	return located{}, domain.NewNotFoundError(fmt.Sprintf("no meeting %q at %s in %s", key.Subject, w, organizerEmail))
}

func (f *Facade) eventWindow(event calendar.RawEvent) (interval.Window, error) {
	start, err := interval.ParseLocal(event.Start, f.loc)
	if err != nil {
		return interval.Window{}, err
	}
	end, err := interval.ParseLocal(event.End, f.loc)
	if err != nil {
		return interval.Window{}, err
	}
	return interval.New(start, end)
}

// ledgerEntry finds the booking behind a located event, by series id first.
func (f *Facade) ledgerEntry(organizerEmail string, target located) (booking.Booking, bool) {
	for _, seriesID := range []string{target.event.SeriesID, target.key.SeriesID} {
		if seriesID == "" {
			continue
		}
		if b, ok := f.ledger.FindBySeriesID(organizerEmail, seriesID); ok {
			return b, true
		}
	}
	return f.ledger.FindByWindow(organizerEmail, target.event.Subject, target.window)
}
