package rooms

import (
	"net/http"

	"github.com/roombook/roombook/internal/rest"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	directory *Directory
}

func NewHandler(directory *Directory) *Handler {
	return &Handler{directory}
}

// ListRooms godoc
// @Summary List known rooms
// @Tags Rooms
// @Produce json
// @Success 200 {array} Room
// @Router /api/rooms [get]
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing rooms")
	all, err := h.directory.List(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, all)
}

// ResolveRoom godoc
// @Summary Find a room by display name or address
// @Tags Rooms
// @Produce json
// @Param q query string true "Display name or address"
// @Success 200 {object} Room
// @Failure 404 {object} rest.ErrorResponse "Room not found"
// @Router /api/rooms/resolve [get]
func (h *Handler) ResolveRoom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		rest.WriteBadRequest(w, "Query parameter 'q' is required", "")
		return
	}
	room, err := h.directory.Resolve(r.Context(), q)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, room)
}
