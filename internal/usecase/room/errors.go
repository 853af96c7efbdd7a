package usecase_room

import (
	"errors"
	"fmt"

	session_auth "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/auth/session"
)

var (
	// ErrInvalidSession covers a missing room, an unknown member and a bad
	// token alike.
	ErrInvalidSession   = session_auth.ErrInvalidSession
	ErrInvalidPasscode  = errors.New("invalid passcode")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTerminalState    = errors.New("session is completed")
	ErrCodeConflict     = errors.New("code conflict")
	ErrRoomsUnavailable = errors.New("no available rooms")
	ErrResourceNotFound = errors.New("no such resource")
	ErrInternal         = errors.New("internal error")
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
