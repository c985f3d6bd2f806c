package stats

import (
	"net/http"

	"github.com/roombook/roombook/internal/rest"
	"github.com/roombook/roombook/pkg/scheduling"
	log "github.com/sirupsen/logrus"
)

type RoomStatsDTO struct {
	Room      string `json:"room"`
	Meetings  int    `json:"meetings"`
	MultiRoom int    `json:"multiRoom"`
	// Booked is in seconds.
	Booked int `json:"booked"`
}

type DailyStatsDTO struct {
	Date          string         `json:"date"`
	Rooms         []RoomStatsDTO `json:"rooms"`
	TotalMeetings int            `json:"totalMeetings"`
	TotalBooked   int            `json:"totalBooked"`
}

type StatsHandler struct {
	statsService     StatsService
	csvStatsRenderer StatsRenderer
}

func NewStatsHandler(statsService StatsService, csvStatsRenderer StatsRenderer) *StatsHandler {
	return &StatsHandler{statsService, csvStatsRenderer}
}

// GetStats godoc
// @Summary Room occupancy for a day
// @Tags Stats
// @Produce json,text/csv
// @Param date query string false "Day, defaults to today"
// @Param rooms query []string false "Room mailbox addresses, defaults to all rooms"
// @Param Accept header string false "text/csv for a CSV report"
// @Success 200 {object} DailyStatsDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid date or room"
// @Router /api/stats/rooms [get]
func (handler *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	log.Debugf("Getting room stats for %q", query.Get("date"))

	stats, err := handler.statsService.DailyRoomStats(r.Context(), scheduling.RoomsParam(query["rooms"]), query.Get("date"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	if r.Header.Get("Accept") == "text/csv" {
		csvStats, err := handler.csvStatsRenderer.RenderStats(stats)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(csvStats)); err != nil {
			log.Errorf("failed to write csv: %v", err)
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, statsToDTO(stats))
}

func statsToDTO(stats DailyStats) DailyStatsDTO {
	rooms := make([]RoomStatsDTO, 0, len(stats.Rooms))
	for _, rs := range stats.Rooms {
		rooms = append(rooms, RoomStatsDTO{
			Room:      rs.Room,
			Meetings:  rs.Meetings,
			MultiRoom: rs.MultiRoom,
			Booked:    int(rs.Booked.Seconds()),
		})
	}
	return DailyStatsDTO{
		Date:          stats.Date.String(),
		Rooms:         rooms,
		TotalMeetings: stats.TotalMeetings,
		TotalBooked:   int(stats.TotalBooked.Seconds()),
	}
}
