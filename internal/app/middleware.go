package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/roombook/roombook/internal/config"
	"github.com/roombook/roombook/pkg/user"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Propagate X-User-Email header into context for downstream services
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if email := req.Header.Get("X-User-Email"); email != "" {
				u := deps.Admins.Identify(email)
				log.Debugf("request by %s (admin: %t)", u.Email, u.IsAdmin)
				ctx = user.WithUser(ctx, u)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	// Bound every request, including the mailbox fan-out it triggers
	if cfg.Aggregation.RequestTimeout > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx, cancel := context.WithTimeout(req.Context(), cfg.Aggregation.RequestTimeout)
				defer cancel()
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
}
