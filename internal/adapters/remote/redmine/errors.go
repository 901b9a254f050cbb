package redmine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingBaseURL and related errors describe invalid client configuration.
var (
	ErrMissingBaseURL = errors.New("missing base url")
	ErrMissingAPIKey  = errors.New("missing api key")
)

// APIError is one non-2xx response from the remote server, keeping the
// messages the server's error envelope carried.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("remote returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}
