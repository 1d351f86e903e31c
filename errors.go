package creditdesk

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx API response, carrying the status code and
// whatever message body the server sent.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

// IsUnauthorized reports whether err is a 401 API response.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// IsStatus reports whether err is an API response with the given status.
func IsStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}
