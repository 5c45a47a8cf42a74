package mealplanner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ProviderErrorKind says whether a provider failure may be retried.
type ProviderErrorKind int

const (
	Fatal ProviderErrorKind = iota
	Transient
)

func (k ProviderErrorKind) String() string {
	if k == Transient {
		return "transient"
	}
	return "fatal"
}

// ProviderError is returned by every Provider implementation.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func NewTransientError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: Transient, StatusCode: status, Err: err}
}

func NewFatalError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: Fatal, StatusCode: status, Err: err}
}

// IsTransient reports whether err carries a transient ProviderError.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == Transient
}

var (
	ErrParse          = errors.New("output is not a parseable day plan")
	ErrShape          = errors.New("day plan has the wrong shape")
	ErrReference      = errors.New("meal references an ingredient it does not list")
	ErrRepetition     = errors.New("meal name repeats an earlier meal")
	ErrInvalidRequest = errors.New("invalid meal plan request")

	ErrPlanNotFound     = errors.New("plan not found")
	ErrAlreadyConfirmed = errors.New("plan already confirmed")
)

// ValidationError describes the first rule a generated day failed.
type ValidationError struct {
	Rule      error
	MealIndex int
	Detail    string
}

func (e *ValidationError) Error() string {
	if e.MealIndex >= 0 {
		return fmt.Sprintf("%v: meal %d: %s", e.Rule, e.MealIndex, e.Detail)
	}
	return fmt.Sprintf("%v: %s", e.Rule, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Rule }

// GenerationFailedError aborts a multi-day request. Callers only learn which
// day could not be generated; LastError is kept for logging.
type GenerationFailedError struct {
	DayIndex  int
	LastError error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("meal plan generation failed on day %d", e.DayIndex)
}

// ReconciliationError is returned when a plan cannot be confirmed.
type ReconciliationError struct {
	PlanID string
	Err    error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("confirm plan %s: %v", e.PlanID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// StatusError classifies an HTTP-style status code from a provider response.
// Rate limiting, request timeouts and 5xx responses are transient.
func StatusError(provider string, status int, err error) *ProviderError {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status >= 500:
		return NewTransientError(provider, status, err)
	}
	return NewFatalError(provider, status, err)
}

// TransportError classifies a failure that happened before any response was
// received. Caller cancellation is fatal; everything else is retried.
func TransportError(provider string, err error) *ProviderError {
	if errors.Is(err, context.Canceled) {
		return NewFatalError(provider, 0, err)
	}
	return NewTransientError(provider, 0, err)
}

// RuleName returns the short name of the validation rule err violates, or
// "provider" for anything else.
func RuleName(err error) string {
	switch {
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrShape):
		return "shape"
	case errors.Is(err, ErrReference):
		return "reference"
	case errors.Is(err, ErrRepetition):
		return "repetition"
	}
	return "provider"
}
