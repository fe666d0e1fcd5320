// Package errors provides standardized error handling for TagKit components.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across the SDK.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes.
type ErrorClass int

const (
	// ErrorInvalid represents errors caused by bad input: malformed time
	// ranges, empty tag lists, unknown aggregation function names. These
	// are surfaced before any I/O and must not be retried.
	ErrorInvalid ErrorClass = iota
	// ErrorNotFound represents unresolvable identities: tag IDs or names
	// with no definition, subscriptions that were never registered or have
	// already been closed.
	ErrorNotFound
	// ErrorCanceled represents operations aborted by the caller's
	// cancellation signal, distinct from real failures.
	ErrorCanceled
	// ErrorUnavailable represents collaborator I/O failures: the key/value
	// store or the raw-sample provider could not serve the request.
	ErrorUnavailable
)

// String returns the string representation of ErrorClass.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorInvalid:
		return "invalid"
	case ErrorNotFound:
		return "not-found"
	case ErrorCanceled:
		return "canceled"
	case ErrorUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	// Tag registry errors
	ErrTagNotFound          = errors.New("tag not found")
	ErrInvalidTagDefinition = errors.New("invalid tag definition")
	ErrNotInitialized       = errors.New("registry not initialized")
	ErrInitFailed           = errors.New("registry initialization failed")

	// Subscription hub errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionClosed   = errors.New("subscription closed")
	ErrHubClosed            = errors.New("hub closed")

	// Query validation errors
	ErrInvalidTimeRange     = errors.New("start time must be before end time")
	ErrInvalidInterval      = errors.New("interval must be greater than zero")
	ErrInvalidIntervalCount = errors.New("interval count must be greater than zero")
	ErrEmptyTagList         = errors.New("at least one tag is required")
	ErrEmptyTimestampList   = errors.New("at least one timestamp is required")
	ErrUnsupportedFunction  = errors.New("unsupported aggregation function")

	// Collaborator errors
	ErrKeyNotFound         = errors.New("key not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrProviderUnavailable = errors.New("raw sample provider unavailable")

	// Lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrQueueClosed    = errors.New("queue closed")
	ErrQueueFull      = errors.New("queue full")

	// Capability errors
	ErrCapabilityNotSupported = errors.New("capability not supported")
)

// ClassifiedError wraps an error with its classification.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is reports whether any error in err's chain matches target. It is a
// re-export so callers need only one errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// IsInvalid reports whether an error was caused by bad input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidIntervalCount) ||
		errors.Is(err, ErrEmptyTagList) ||
		errors.Is(err, ErrEmptyTimestampList) ||
		errors.Is(err, ErrUnsupportedFunction) ||
		errors.Is(err, ErrInvalidTagDefinition)
}

// IsNotFound reports whether an error represents an unresolvable identity.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorNotFound
	}

	return errors.Is(err, ErrTagNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrCapabilityNotSupported)
}

// IsCanceled reports whether an error was caused by caller cancellation.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorCanceled
	}

	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsUnavailable reports whether an error represents a collaborator I/O failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorUnavailable
	}

	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrInitFailed)
}

// Classify returns the error class for an error. Unknown errors default to
// Unavailable so callers treat them as collaborator failures rather than
// silently absorbing them.
func Classify(err error) ErrorClass {
	switch {
	case IsCanceled(err):
		return ErrorCanceled
	case IsInvalid(err):
		return ErrorInvalid
	case IsNotFound(err):
		return ErrorNotFound
	default:
		return ErrorUnavailable
	}
}

// newClassified creates a new classified error.
// Internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as invalid input with context.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// WrapNotFound wraps an error as an unresolvable identity with context.
func WrapNotFound(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorNotFound, wrappedErr, component, method, wrappedErr.Error())
}

// WrapCanceled wraps an error as caller cancellation with context.
func WrapCanceled(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorCanceled, wrappedErr, component, method, wrappedErr.Error())
}

// WrapUnavailable wraps an error as a collaborator failure with context.
func WrapUnavailable(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorUnavailable, wrappedErr, component, method, wrappedErr.Error())
}

// FromContext converts a context error into a classified Canceled error.
// Returns nil if the context has not been canceled.
func FromContext(ctx context.Context, component, method string) error {
	if err := ctx.Err(); err != nil {
		return WrapCanceled(err, component, method, "context check")
	}
	return nil
}
