package google

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roombook/roombook/internal/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// mapError translates a Google API failure into the domain taxonomy. Only
// rejected credentials are ProviderAuth; a 403 is scoped to one calendar
// (no access, rate limits) and is a ProviderIO failure of that call.
func mapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	message := fmt.Sprintf(format, args...)

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return domain.NewProviderAuthError(message, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return domain.NewProviderAuthError(message, err)
		case http.StatusNotFound, http.StatusGone:
			return domain.NewNotFoundError(message, err)
		case http.StatusConflict:
			return domain.NewRoomConflictError(message, err)
		}
	}
	return domain.NewProviderIOError(message, err)
}
