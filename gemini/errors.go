package gemini

import (
	"fmt"
	"net/http"
)

// APIError is returned when the upstream answers with a non-2xx status.
type APIError struct {
	StatusCode int
	// Detail is the parsed upstream error object, nil if the body had none.
	Detail *ErrorDetail
}

func (e *APIError) Error() string {
	if e.Detail != nil && e.Detail.Message != "" {
		return fmt.Sprintf("gemini: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Detail.Message)
	}
	return fmt.Sprintf("gemini: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
