package service

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotAvailable      = errors.New("dates are not available")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDisabled          = errors.New("feature is not configured")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrPayment           = errors.New("payment provider error")
)

func invalid(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (e *validationError) Error() string        { return e.msg }
func (e *validationError) Is(target error) bool { return target == ErrValidation }
