package app

import (
	"context"
	"fmt"
	"time"

	"github.com/roombook/roombook/internal/config"
	"github.com/roombook/roombook/internal/event_bus"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/aggregator"
	"github.com/roombook/roombook/pkg/booking"
	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/concurrent"
	"github.com/roombook/roombook/pkg/google"
	"github.com/roombook/roombook/pkg/icsexport"
	"github.com/roombook/roombook/pkg/rooms"
	"github.com/roombook/roombook/pkg/scheduling"
	"github.com/roombook/roombook/pkg/stats"
	"github.com/roombook/roombook/pkg/user"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	Admins   user.Admins

	CalendarProvider calendar.Provider
	RoomSource       rooms.Source

	RoomDirectory *rooms.Directory
	RoomsHandler  *rooms.Handler

	Ledger     *booking.Ledger
	Aggregator *aggregator.Aggregator

	SchedulingFacade  *scheduling.Facade
	SchedulingHandler *scheduling.Handler
	IcsHandler        *icsexport.Handler
	StatsHandler      *stats.StatsHandler
	UserHandler       *user.Handler
	InfoHandler       *InfoHandler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, cfg config.Application, loc *time.Location) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.Clock = utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	event_bus.SubscribeAuditLog(deps.EventBus)
	deps.Admins = user.NewAdmins(cfg.Admins)

	switch cfg.Provider.Type {
	case config.ProviderMemory, "":
		deps.CalendarProvider = calendar.NewMemoryProvider(loc, utils.UUIDGenerator)
	case config.ProviderGoogle:
		googleCalendar, roomSource, err := google.NewServices(ctx, cfg.Provider.Google, loc)
		if err != nil {
			return nil, err
		}
		deps.CalendarProvider = googleCalendar
		deps.RoomSource = roomSource
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Provider.Type)
	}

	configured := make([]rooms.Room, 0, len(cfg.Rooms))
	for _, r := range cfg.Rooms {
		configured = append(configured, rooms.Room{Address: r.Address, DisplayName: r.DisplayName})
	}
	deps.RoomDirectory = rooms.NewDirectory(configured, deps.RoomSource, cfg.Directory.CacheTTL)
	deps.RoomsHandler = rooms.NewHandler(deps.RoomDirectory)

	deps.Ledger = booking.NewLedger(deps.Clock, utils.UUIDGenerator)
	deps.Aggregator = aggregator.NewAggregator(
		deps.CalendarProvider,
		deps.RoomDirectory,
		loc,
		cfg.Aggregation.MailboxTimeout,
		concurrent.NewWorkerPool(cfg.Aggregation.Workers),
	)

	deps.SchedulingFacade = scheduling.NewFacade(deps.Ledger, deps.Aggregator, deps.CalendarProvider, deps.RoomDirectory, deps.Clock, deps.EventBus)
	deps.SchedulingHandler = scheduling.NewHandler(deps.SchedulingFacade)
	deps.IcsHandler = icsexport.NewHandler(deps.SchedulingFacade, deps.Clock)
	deps.StatsHandler = stats.NewStatsHandler(stats.NewStatsServiceImpl(deps.SchedulingFacade, deps.Clock, loc), stats.NewCsvStatsRenderer())
	deps.UserHandler = user.NewHandler()
	deps.InfoHandler = NewInfoHandler(cfg, loc)

	return deps, nil
}
