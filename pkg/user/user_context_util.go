package user

import (
	"context"

	"github.com/roombook/roombook/internal/domain"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const UserKey contextKey = "user"

var ErrNoUser = domain.NewAuthorizationError("caller identity is required")

// CurrentUser retrieves the caller from the context. Returns ErrNoUser if no caller is present.
func CurrentUser(ctx context.Context) (User, error) {
	user, ok := ctx.Value(UserKey).(User)
	if !ok || user.Email == "" {
		log.Trace("user not found in context")
		return User{}, ErrNoUser
	}
	return user, nil
}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
