package event_bus

import (
	log "github.com/sirupsen/logrus"
)

// SubscribeAuditLog writes one structured log line per booking lifecycle event.
func SubscribeAuditLog(eb *EventBus) (unsubscribe func()) {
	unsubs := []func(){
		SubscribeTyped(eb, BookingCreatedEvent, func(e EventT[BookingCreated]) error {
			log.WithFields(log.Fields{
				"event":     string(e.Type),
				"booking":   e.Data.BookingID,
				"organizer": e.Data.OrganizerEmail,
				"room":      e.Data.RoomEmail,
				"start":     e.Data.Start,
				"end":       e.Data.End,
				"series":    e.Data.SeriesID,
				"recurring": e.Data.Recurring,
			}).Info("booking created")
			return nil
		}),
		SubscribeTyped(eb, MeetingCancelledEvent, func(e EventT[MeetingCancelled]) error {
			log.WithFields(log.Fields{
				"event":     string(e.Type),
				"meeting":   e.Data.IdentityKey,
				"organizer": e.Data.OrganizerEmail,
				"by":        e.Data.CancelledBy,
				"booking":   e.Data.BookingID,
			}).Info("meeting cancelled")
			return nil
		}),
		SubscribeTyped(eb, MeetingModifiedEvent, func(e EventT[MeetingModified]) error {
			log.WithFields(log.Fields{
				"event":     string(e.Type),
				"meeting":   e.Data.IdentityKey,
				"organizer": e.Data.OrganizerEmail,
				"by":        e.Data.ModifiedBy,
				"booking":   e.Data.BookingID,
				"changed":   e.Data.ChangedFields,
			}).Info("meeting modified")
			return nil
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
