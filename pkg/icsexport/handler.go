package icsexport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/roombook/roombook/internal/rest"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/aggregator"
	"github.com/roombook/roombook/pkg/scheduling"
	log "github.com/sirupsen/logrus"
)

type DayLister interface {
	ListDay(ctx context.Context, roomAddresses []string, date string) ([]aggregator.CanonicalMeeting, error)
}

type Handler struct {
	lister DayLister
	clock  utils.Clock
}

func NewHandler(lister DayLister, clock utils.Clock) *Handler {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Handler{lister: lister, clock: clock}
}

// ExportDay godoc
// @Summary Export a day's meetings as iCalendar
// @Tags Meetings
// @Produce text/calendar
// @Param date query string false "Day, defaults to today"
// @Param rooms query []string false "Room mailbox addresses, defaults to all rooms"
// @Success 200 {string} string "text/calendar feed"
// @Failure 400 {object} rest.ErrorResponse "Invalid date or room"
// @Router /api/meetings.ics [get]
func (h *Handler) ExportDay(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	log.Debugf("Exporting meetings for %q", query.Get("date"))

	meetings, err := h.lister.ListDay(r.Context(), scheduling.RoomsParam(query["rooms"]), query.Get("date"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := Render(&buf, meetings, h.clock.Now()); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "meetings.ics"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Errorf("failed to write calendar: %v", err)
	}
}
