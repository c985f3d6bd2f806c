package aggregator

import (
	"slices"
	"strings"

	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/roombook/roombook/pkg/rooms"
	log "github.com/sirupsen/logrus"
)

const (
	NoTitle     = "[No Title]"
	UnknownRoom = "Unknown"
)

type normalizedEvent struct {
	key            IdentityKey
	seriesID       string
	subject        string
	window         interval.Window
	startLocal     string
	endLocal       string
	organizer      string
	organizerEmail string
	room           string
	attendeeCount  int
}

// normalize turns one mailbox's copy of an event into its canonical shape.
// Events starting on another day are dropped.
func (a *Aggregator) normalize(raw calendar.RawEvent, mailbox rooms.Room, day interval.Date, known roomIndex) (normalizedEvent, bool) {
	start, err := interval.ParseLocal(raw.Start, a.loc)
	if err != nil {
		log.Warnf("skipping event %s from %s: bad start: %v", raw.ID, mailbox.Address, err)
		return normalizedEvent{}, false
	}
	end, err := interval.ParseLocal(raw.End, a.loc)
	if err != nil {
		log.Warnf("skipping event %s from %s: bad end: %v", raw.ID, mailbox.Address, err)
		return normalizedEvent{}, false
	}
	window, err := interval.New(start, end)
	if err != nil {
		log.Warnf("skipping event %s from %s: %v", raw.ID, mailbox.Address, err)
		return normalizedEvent{}, false
	}
	if interval.DateOf(start, a.loc) != day {
		log.Tracef("dropping event %s from %s starting on %s", raw.ID, mailbox.Address, interval.DateOf(start, a.loc))
		return normalizedEvent{}, false
	}

	subject := strings.TrimSpace(raw.Subject)
	if subject == "" {
		subject = NoTitle
	}
	ev := normalizedEvent{
		seriesID:       raw.SeriesID,
		subject:        subject,
		window:         window,
		startLocal:     interval.FormatLocal(start, a.loc),
		endLocal:       interval.FormatLocal(end, a.loc),
		organizer:      OrganizerName(raw.OrganizerName, raw.OrganizerEmail),
		organizerEmail: raw.OrganizerEmail,
		attendeeCount:  len(raw.Attendees),
	}

	// Each copy stands for the mailbox it came from; the rooms the event
	// mentions only name a mailbox that has no display name.
	switch hits := roomHits(raw, known); {
	case mailbox.DisplayName != "":
		ev.room = mailbox.DisplayName
	case len(hits) > 0:
		ev.room = hits[0]
	case strings.TrimSpace(raw.Location) != "":
		ev.room = strings.TrimSpace(raw.Location)
	default:
		ev.room = UnknownRoom
	}

	if raw.SeriesID != "" {
		ev.key = SeriesKey(raw.SeriesID)
	} else {
		ev.key = FallbackKey(subject, ev.startLocal, ev.endLocal, raw.OrganizerEmail)
	}
	return ev, true
}

// roomHits lists the known rooms an event mentions through its locations and
// resource attendees, in order of first mention.
func roomHits(raw calendar.RawEvent, known roomIndex) []string {
	var hits []string
	add := func(name string, ok bool) {
		if ok && !slices.Contains(hits, name) {
			hits = append(hits, name)
		}
	}
	for _, l := range append([]string{raw.Location}, raw.Locations...) {
		for _, name := range known.names(l) {
			add(name, true)
		}
	}
	for _, attendee := range raw.Attendees {
		if attendee.Role != calendar.RoleResource {
			continue
		}
		if name, ok := known.name(attendee.Name); ok {
			add(name, ok)
			continue
		}
		add(known.address(attendee.Email))
	}
	return hits
}

// OrganizerName falls back to the local part of the email when no display
// name is known.
func OrganizerName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return local
}

// group folds events sharing an identity key. The first member in mailbox
// order represents the group; rooms are the union of the members' rooms.
func group(events []normalizedEvent) ([]CanonicalMeeting, error) {
	index := make(map[IdentityKey]int)
	var groups []CanonicalMeeting
	for _, ev := range events {
		i, seen := index[ev.key]
		if !seen {
			token, err := ev.key.Encode()
			if err != nil {
				return nil, err
			}
			index[ev.key] = len(groups)
			groups = append(groups, CanonicalMeeting{
				IdentityKey:    token,
				SeriesID:       ev.seriesID,
				Subject:        ev.subject,
				Window:         ev.window,
				StartLocal:     ev.startLocal,
				EndLocal:       ev.endLocal,
				Organizer:      ev.organizer,
				OrganizerEmail: ev.organizerEmail,
				AttendeeCount:  ev.attendeeCount,
			})
			i = len(groups) - 1
		}
		if m := &groups[i]; !slices.Contains(m.Rooms, ev.room) {
			m.Rooms = append(m.Rooms, ev.room)
		}
	}

	for i := range groups {
		slices.Sort(groups[i].Rooms)
	}
	slices.SortStableFunc(groups, func(a, b CanonicalMeeting) int {
		if c := strings.Compare(a.StartLocal, b.StartLocal); c != 0 {
			return c
		}
		if c := strings.Compare(a.EndLocal, b.EndLocal); c != 0 {
			return c
		}
		if c := strings.Compare(a.Subject, b.Subject); c != 0 {
			return c
		}
		return strings.Compare(a.IdentityKey, b.IdentityKey)
	})
	return groups, nil
}
