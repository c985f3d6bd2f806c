package google

import (
	"context"
	"time"

	"github.com/roombook/roombook/internal/config"
	log "github.com/sirupsen/logrus"
	admin "google.golang.org/api/admin/directory/v1"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// NewServices builds the calendar provider and the room source sharing one
// authorized client.
func NewServices(ctx context.Context, cfg config.Google, loc *time.Location) (*Calendar, *RoomSource, error) {
	auth, err := NewGoogleAuth(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := auth.getClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	return newServicesWithOptions(ctx, cfg, loc, option.WithHTTPClient(client))
}

func newServicesWithOptions(ctx context.Context, cfg config.Google, loc *time.Location, opts ...option.ClientOption) (*Calendar, *RoomSource, error) {
	calendarService, err := gcal.NewService(ctx, opts...)
	if err != nil {
		log.Errorf("unable to create Calendar client: %v", err)
		return nil, nil, mapError(err, "unable to create Calendar client")
	}
	directoryService, err := admin.NewService(ctx, opts...)
	if err != nil {
		log.Errorf("unable to create Directory client: %v", err)
		return nil, nil, mapError(err, "unable to create Directory client")
	}
	return NewCalendar(calendarService, loc), NewRoomSource(directoryService, cfg.CustomerId), nil
}
