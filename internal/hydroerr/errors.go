// Package hydroerr defines the error taxonomy shared by the store, auth
// and API layers. Callers classify failures with errors.Is against the
// category sentinels; the more specific sentinels wrap a category so a
// single check catches the whole class.
package hydroerr

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation")
)

// NotFound kinds. "No data" conditions are data-presence failures on a
// registered point and stay distinguishable from a missing registry row.
var (
	ErrPointNotFound  = fmt.Errorf("point %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrNoData         = fmt.Errorf("no measurement data: %w", ErrNotFound)
	ErrNoCurrentData  = fmt.Errorf("no current measurement data: %w", ErrNotFound)
	ErrNoPreviousData = fmt.Errorf("no previous measurement data: %w", ErrNotFound)
)

// Conflict kinds.
var (
	ErrPointCodeExists = fmt.Errorf("point code already exists: %w", ErrConflict)
	ErrUsernameExists  = fmt.Errorf("username already exists: %w", ErrConflict)
	ErrEmailExists     = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrPointInUse      = fmt.Errorf("point has instrument readings: %w", ErrConflict)
)

// Authentication kinds.
var (
	ErrBadCredentials = fmt.Errorf("invalid username or password: %w", ErrUnauthenticated)
	ErrInvalidToken   = fmt.Errorf("invalid or expired token: %w", ErrUnauthenticated)
	ErrInactiveUser   = fmt.Errorf("user is disabled: %w", ErrUnauthenticated)
)

// Validationf wraps a formatted message as a validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// IsNotFound reports whether err is any NotFound kind.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is any Conflict kind.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnauthenticated reports whether err is any Unauthenticated kind.
func IsUnauthenticated(err error) bool { return errors.Is(err, ErrUnauthenticated) }

// IsForbidden reports whether err is a Forbidden error.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
