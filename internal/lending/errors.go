package lending

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthExpired reports a 401 from an authenticated call.
	ErrAuthExpired = errors.New("session expired")
	// ErrValidation reports a 4xx rejection carrying a user-facing message.
	ErrValidation = errors.New("request rejected")
	// ErrNotFound reports a 404.
	ErrNotFound = errors.New("not found")
	// ErrConnectivity reports that the API could not be reached.
	ErrConnectivity = errors.New("api unreachable")
)

// Kind classifies an error for presentation.
type Kind int

const (
	KindNone Kind = iota
	KindAuthExpired
	KindValidation
	KindNotFound
	KindConnectivity
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuthExpired:
		return "auth-expired"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not-found"
	case KindConnectivity:
		return "connectivity"
	default:
		return "other"
	}
}

// APIError is a non-2xx response from the lending API.
type APIError struct {
	Status  int
	Path    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}

// Unwrap maps the status code onto the sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrAuthExpired
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= 400 && e.Status < 500:
		return ErrValidation
	default:
		return nil
	}
}

// Classify returns the Kind of err.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConnectivity):
		return KindConnectivity
	default:
		return KindOther
	}
}

// Message returns the text to show the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch Classify(err) {
	case KindAuthExpired:
		return "Your session has expired. Please log in again."
	case KindConnectivity:
		return "Could not connect to server. Press r to retry."
	case KindNotFound:
		return "Nothing found."
	case KindValidation:
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return "The request was rejected."
	}
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return "Server error: " + apiErr.Message
	}
	return "Server error"
}
