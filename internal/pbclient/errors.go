package pbclient

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the data service. Status carries the
// upstream HTTP status code; Data is the upstream error payload, if any.
type APIError struct {
	Status  int
	Message string
	Data    map[string]any
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("data service: %d %s", e.Status, e.Message)
}

// AsAPIError unwraps err looking for an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == status
}
