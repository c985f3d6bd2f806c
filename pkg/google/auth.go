package google

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/roombook/roombook/internal/config"
	"github.com/roombook/roombook/internal/domain"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	gcal "google.golang.org/api/calendar/v3"
)

var scopes = []string{
	gcal.CalendarScope,
	admin.AdminDirectoryResourceCalendarReadonlyScope,
}

// GoogleAuth issues HTTP clients authorized as the configured service account,
// impersonating the Workspace subject so room calendars are reachable.
type GoogleAuth struct {
	credentials []byte
	subject     string
}

func NewGoogleAuth(cfg config.Google) (*GoogleAuth, error) {
	if cfg.CredentialsFile == "" {
		return nil, domain.NewValidationError("google provider requires provider.google.credentialsfile")
	}
	credentials, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read Google credentials file: %w", err)
	}
	return &GoogleAuth{credentials: credentials, subject: cfg.Subject}, nil
}

func (g *GoogleAuth) getClient(ctx context.Context) (*http.Client, error) {
	jwtConfig, err := google.JWTConfigFromJSON(g.credentials, scopes...)
	if err != nil {
		log.Errorf("invalid Google service account credentials: %v", err)
		return nil, domain.NewProviderAuthError("invalid Google service account credentials", err)
	}
	jwtConfig.Subject = g.subject
	return jwtConfig.Client(ctx), nil
}
