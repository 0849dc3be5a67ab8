package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set when the request was rejected by flood control.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram api error: %s (retry after %s)", e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram api error: %s", e.Description)
}

func newAPIError(method string, resp *APIResponse) *APIError {
	apiErr := &APIError{
		Method:      method,
		Code:        resp.ErrorCode,
		Description: resp.Description,
	}
	if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
		apiErr.RetryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
	}
	return apiErr
}

// IsMessageNotModified reports whether an edit was rejected because the new
// content equals the current one.
func IsMessageNotModified(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.Description, "message is not modified")
}

// RetryAfter returns the wait duration demanded by a flood-control rejection.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	if apiErr.RetryAfter <= 0 {
		return 0, false
	}
	return apiErr.RetryAfter, true
}
