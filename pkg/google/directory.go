package google

import (
	"context"

	"github.com/roombook/roombook/pkg/rooms"
	log "github.com/sirupsen/logrus"
	admin "google.golang.org/api/admin/directory/v1"
)

// RoomSource lists the Workspace calendar resources as rooms.
type RoomSource struct {
	service    *admin.Service
	customerId string
}

func NewRoomSource(service *admin.Service, customerId string) *RoomSource {
	if customerId == "" {
		customerId = "my_customer"
	}
	return &RoomSource{service: service, customerId: customerId}
}

func (s *RoomSource) ListRooms(ctx context.Context) ([]rooms.Room, error) {
	var result []rooms.Room
	err := s.service.Resources.Calendars.List(s.customerId).Pages(ctx, func(page *admin.CalendarResources) error {
		for _, item := range page.Items {
			if item.ResourceEmail == "" {
				continue
			}
			name := item.ResourceName
			if name == "" {
				name = item.GeneratedResourceName
			}
			result = append(result, rooms.Room{Address: item.ResourceEmail, DisplayName: name})
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "unable to list Google calendar resources")
	}
	log.Debugf("Google directory reported %d rooms", len(result))
	return result, nil
}
