// Package errs holds the error taxonomy shared by the repositories, the
// analysis pipeline and the HTTP handlers.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidReference = errors.New("invalid storage reference")
	ErrNotFound         = errors.New("not found")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrInvalidFormat    = errors.New("invalid document format")
	ErrCorruptDocument  = errors.New("corrupt document")
	ErrProvider         = errors.New("model provider error")
	ErrTimeout          = errors.New("timeout")
	ErrSchemaParse      = errors.New("structured response does not match schema")
	ErrPersistence      = errors.New("persistence error")
)

// ProviderError reports a transport or provider-side failure of a model call.
// errors.Is(err, ErrProvider) holds for every ProviderError.
type ProviderError struct {
	Provider string
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProvider, e.Provider, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func NewProviderError(provider string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Cause: cause}
}

// IsTimeout reports whether err is a provider call that ran out of time.
func IsTimeout(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && errors.Is(pe.Cause, ErrTimeout)
}
