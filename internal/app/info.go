package app

import (
	"net/http"
	"time"

	"github.com/roombook/roombook/internal/config"
	"github.com/roombook/roombook/internal/rest"
)

type InfoDTO struct {
	Timezone string `json:"timezone"`
	Provider string `json:"provider"`
	Rooms    int    `json:"configuredRooms"`
}

type InfoHandler struct {
	info InfoDTO
}

func NewInfoHandler(cfg config.Application, loc *time.Location) *InfoHandler {
	provider := cfg.Provider.Type
	if provider == "" {
		provider = config.ProviderMemory
	}
	return &InfoHandler{info: InfoDTO{Timezone: loc.String(), Provider: provider, Rooms: len(cfg.Rooms)}}
}

// Health godoc
// @Summary Liveness probe
// @Tags Info
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *InfoHandler) Health(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info godoc
// @Summary Service configuration summary
// @Tags Info
// @Produce json
// @Success 200 {object} InfoDTO
// @Router /api/info [get]
func (h *InfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, h.info)
}
