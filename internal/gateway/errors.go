package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidShape is the cause of every response that parsed but did not
// have the expected structure.
var ErrInvalidShape = errors.New("invalid response shape")

const invalidShapeMessage = "Invalid response format"

// APIError describes a failed upstream call. Status is zero when no HTTP
// response was received or the response body had the wrong shape.
type APIError struct {
	Status  int
	Message string
	Details string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the credentials were rejected and the user
// should authenticate again.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsUnauthorized reports whether err carries a 401 from upstream.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

func shapeError(format string, args ...any) *APIError {
	return &APIError{
		Message: invalidShapeMessage,
		Details: fmt.Sprintf(format, args...),
		Err:     ErrInvalidShape,
	}
}

func networkError(err error) *APIError {
	return &APIError{
		Message: fmt.Sprintf("Network error: %v", err),
		Err:     err,
	}
}

// statusError builds the error for a non-2xx response. The upstream reports
// problems under "detail", "error" or "message"; the raw body is kept too.
func statusError(status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:  status,
		Message: http.StatusText(status),
		Details: strings.TrimSpace(string(body)),
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}
	for _, field := range []string{"detail", "error", "message"} {
		if msg, ok := payload[field].(string); ok && msg != "" {
			apiErr.Message = msg
			break
		}
	}
	return apiErr
}
