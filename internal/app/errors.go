package app

import (
	"errors"
	"fmt"
	"net/http"

	"winzone/api/internal/pbclient"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// mapError translates a failure into its HTTP representation. Data-service
// errors are classified by status code, never by message text, and upstream
// stack traces never reach the client.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	if apiErr, ok := pbclient.AsAPIError(err); ok {
		code := codeForStatus(apiErr.Status)
		status := apiErr.Status
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		var details any
		if len(apiErr.Data) > 0 {
			details = apiErr.Data
		}
		return status, code, apiErr.Message, details
	}

	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}
