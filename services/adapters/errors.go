package adapters

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ServiceError is the normalized failure of any external provider call
type ServiceError struct {
	Provider   string
	StatusCode int
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// RateLimitError marks a provider refusal caused by quota or request-rate limits.
// Callers may retry these after a delay.
type RateLimitError struct {
	*ServiceError
}

func (e *RateLimitError) Error() string {
	return "rate limited: " + e.ServiceError.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.ServiceError
}

// IsRateLimit reports whether err (or anything it wraps) is a RateLimitError
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// newServiceError wraps cause for provider, promoting it to a RateLimitError
// when the status code or the message says the quota is exhausted.
func newServiceError(provider string, statusCode int, cause error) error {
	if cause == nil {
		cause = errors.New("unknown error")
	}
	se := &ServiceError{Provider: provider, StatusCode: statusCode, Cause: cause}
	if statusCode == http.StatusTooManyRequests || (statusCode == 0 && looksRateLimited(cause)) {
		return &RateLimitError{ServiceError: se}
	}
	return se
}

// looksRateLimited matches 429 status codes and RESOURCE_EXHAUSTED errors
// for SDKs that only expose them in the message.
func looksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}
