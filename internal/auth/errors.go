package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("resource conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// ErrBanned is returned for any write attempted by an identity with an active ban.
	ErrBanned = fmt.Errorf("%w: account banned", ErrForbidden)
)
