package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roombook/roombook/internal/domain"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeAuthorization:
		return http.StatusForbidden
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict, domain.ErrorTypeRoomConflict:
		return http.StatusConflict
	case domain.ErrorTypeProviderAuth, domain.ErrorTypeProviderIO:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as an ErrorResponse. Internal errors are logged and
// their message is not exposed.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	response := ErrorResponse{Error: err.Error()}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		response.Error = domainErr.Message
		response.Fields = domainErr.Fields
		if domainErr.Err != nil {
			response.Details = domainErr.Err.Error()
		}
	}
	if status == http.StatusInternalServerError {
		log.Errorf("internal error: %v", err)
		response = ErrorResponse{Error: "Internal server error"}
	}
	WriteJSON(w, status, response)
}

// WriteBadRequest reports a malformed request that never reached the domain.
func WriteBadRequest(w http.ResponseWriter, message, details string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: details})
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
