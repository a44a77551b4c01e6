package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a structured Bot API error response.
type APIError struct {
	Method      string
	ErrorCode   int
	Description string
	RetryAfter  int // seconds, only for 429
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: error %d: %s (retry_after=%ds)", e.Method, e.ErrorCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: error %d: %s", e.Method, e.ErrorCode, e.Description)
}

// IsBotBlocked reports whether the user blocked the bot (403).
func IsBotBlocked(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == http.StatusForbidden
	}
	return false
}

// IsMessageNotModified reports Telegram's 400 for an edit that changes
// nothing, which callers usually ignore.
func IsMessageNotModified(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(apiErr.Description), "message is not modified")
	}
	return false
}

// GetRetryAfter returns the retry_after seconds of a 429, or 0.
func GetRetryAfter(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == http.StatusTooManyRequests {
		return apiErr.RetryAfter
	}
	return 0
}
