package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrPackageNotFound      = errors.New("credit package not found")
	ErrReportNotFound       = errors.New("report not found")
	ErrPromoInvalid         = errors.New("promo code invalid")
	ErrPromoExhausted       = errors.New("promo code exhausted")
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// ErrorKind is the client-facing category of a failed valuation request.
type ErrorKind string

const (
	KindUnauthenticated     ErrorKind = "unauthenticated"
	KindValidation          ErrorKind = "validation"
	KindInsufficientCredits ErrorKind = "insufficient_credits"
	KindUserNotFound        ErrorKind = "user_not_found"
	KindInProgress          ErrorKind = "in_progress"
	KindRateLimited         ErrorKind = "rate_limited"
	KindProviderValidation  ErrorKind = "provider_validation"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindStorage             ErrorKind = "storage"
)

// Status maps the kind to the HTTP status returned at the boundary.
func (k ErrorKind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation, KindInsufficientCredits:
		return http.StatusBadRequest
	case KindUserNotFound:
		return http.StatusNotFound
	case KindInProgress:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindProviderValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ProviderFailure narrows KindProviderValidation.
type ProviderFailure string

const (
	FailureTooWide           ProviderFailure = "too_wide"
	FailureTooTight          ProviderFailure = "too_tight"
	FailureLowConfidence     ProviderFailure = "low_confidence"
	FailureMalformedResponse ProviderFailure = "malformed_response"
)

// Error is the single error type returned by ValuationService.Submit.
// Cause is for logs only and never rendered to clients.
type Error struct {
	Kind           ErrorKind
	Subkind        ProviderFailure
	Message        string
	Hint           string
	Details        string
	Suggestions    []string
	CreditsNeeded  int
	CurrentCredits int
	RetryAfter     time.Duration
	Cause          error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Subkind != "" {
		msg += "/" + string(e.Subkind)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the client may resend the same request unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstreamUnavailable || e.Kind == KindInProgress || e.Kind == KindRateLimited
}

func validationError(message, hint string) *Error {
	return &Error{Kind: KindValidation, Message: message, Hint: hint}
}

func insufficientCredits(cost, balance int) *Error {
	needed := cost - balance
	if needed < 0 {
		needed = 0
	}
	return &Error{
		Kind:           KindInsufficientCredits,
		Message:        fmt.Sprintf("Insufficient credits. You need %d credits for a property valuation.", cost),
		CreditsNeeded:  needed,
		CurrentCredits: balance,
	}
}

func storageError(cause error) *Error {
	return &Error{Kind: KindStorage, Message: "Failed to get property valuation", Cause: cause}
}

func upstreamError(cause error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: "The valuation service is temporarily unavailable. Please try again.", Cause: cause}
}
