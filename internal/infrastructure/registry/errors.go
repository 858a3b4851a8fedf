// Package registry holds what the RENAPER and SINTYS HTTP clients share: the
// failure taxonomy and request plumbing.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"celiaquia/internal/errs"
)

// ErrorCategory is the normalized failure class of a registry call.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorOutage         ErrorCategory = "provider_outage"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorInternal       ErrorCategory = "internal"
)

// ProviderError is a categorized registry failure. It always carries the
// EXTERNAL_UNAVAILABLE kind except for not_found, which callers treat as an
// answer rather than a failure.
type ProviderError struct {
	Category   ErrorCategory
	Provider   string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	if e.Category == ErrorNotFound {
		return e.Underlying
	}
	return errs.WithKind(e.Underlying, errs.KindExternalUnavailable, e.Message)
}

func NewProviderError(category ErrorCategory, provider, message string, underlying error) *ProviderError {
	if underlying == nil {
		underlying = errors.New(message)
	}
	return &ProviderError{
		Category:   category,
		Provider:   provider,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorOutage || category == ErrorRateLimited,
	}
}

// CategoryOf extracts the category, defaulting to internal.
func CategoryOf(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// ClassifyTransport maps a failed http round trip to a category.
func ClassifyTransport(provider string, err error) *ProviderError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ErrorTimeout, provider, "request timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewProviderError(ErrorTimeout, provider, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ErrorInternal, provider, "request canceled", err)
	default:
		return NewProviderError(ErrorOutage, provider, "request failed", err)
	}
}

// ClassifyStatus maps a non-2xx status to a category.
func ClassifyStatus(provider string, status int) *ProviderError {
	msg := fmt.Sprintf("unexpected status %d", status)
	switch {
	case status == http.StatusNotFound:
		return NewProviderError(ErrorNotFound, provider, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, provider, msg, nil)
	case status == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, provider, msg, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewProviderError(ErrorTimeout, provider, msg, nil)
	case status >= 500:
		return NewProviderError(ErrorOutage, provider, msg, nil)
	default:
		return NewProviderError(ErrorBadData, provider, msg, nil)
	}
}

// Fold lowercases, strips accents and collapses spaces so registry names
// compare equal to upload names ("PÉREZ  Ana" == "perez ana").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}
