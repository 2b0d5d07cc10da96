package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the service layer. Handlers map these onto HTTP
// statuses; everything else surfaces as an internal error.
var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("not authorized")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("upstream service unavailable")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func unavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
