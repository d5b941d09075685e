package extractor

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// RateLimitError indicates a provider returned HTTP 429. It is a
// ServiceUnavailable kind.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() []error {
	return []error{domain.ErrServiceUnavailable, e.Err}
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// StatusError converts a non-2xx provider reply into a typed error.
func StatusError(provider string, resp *http.Response, body []byte) error {
	baseErr := fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, Truncate(string(body), 500))
	if resp.StatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(provider, baseErr, ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
	}
	return &domain.ServiceUnavailableError{Provider: provider, StatusCode: resp.StatusCode, Cause: baseErr}
}

// TransportError wraps a failure to reach or read from a provider.
func TransportError(provider string, err error) error {
	return &domain.ServiceUnavailableError{Provider: provider, Cause: err}
}

// MissingCredentials reports an absent credential before any request is made.
func MissingCredentials(provider, what string) error {
	return &domain.ServiceConfigurationError{Provider: provider, Reason: what + " is not set"}
}

// ErrTruncated marks a reply cut off by the provider's output limit.
var ErrTruncated = errors.New("output truncated by provider token limit")

// TruncatedReply reports a reply the provider stopped early.
func TruncatedReply(text string) error {
	return &domain.MalformedResponseError{Span: Truncate(text, 500), Cause: ErrTruncated}
}

// Truncate shortens s to maxLen bytes for logs and error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
