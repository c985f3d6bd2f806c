package user

import (
	"net/http"

	"github.com/roombook/roombook/internal/rest"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// CurrentUser godoc
// @Summary Get current user
// @Description Returns the caller identified by the X-User-Email header
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 403 {object} rest.ErrorResponse "No caller identity"
// @Router /api/user/current [get]
// @Security XUserEmail
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Getting current user")
	u, err := CurrentUser(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, UserDTO{Email: u.Email, IsAdmin: u.IsAdmin})
}
