package http_common

import (
	"errors"
	"net/http"

	usecase_room "github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/usecase/room"
)

const (
	SessionTokenHeader = "X-Session-Token"
	UserNameHeader     = "X-User-Name"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

// ErrorStatus maps a usecase error to a status and a message that is safe
// to show the caller.
func ErrorStatus(err error) (int, ErrorResponse) {
	var validation *usecase_room.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{Message: validation.Message}
	case errors.Is(err, usecase_room.ErrInvalidSession):
		return http.StatusUnauthorized, ErrorResponse{Message: "invalid session"}
	case errors.Is(err, usecase_room.ErrInvalidPasscode):
		return http.StatusUnauthorized, ErrorResponse{Message: "invalid passcode"}
	case errors.Is(err, usecase_room.ErrPermissionDenied):
		return http.StatusForbidden, ErrorResponse{Message: "permission denied"}
	case errors.Is(err, usecase_room.ErrResourceNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "not found"}
	case errors.Is(err, usecase_room.ErrTerminalState):
		return http.StatusConflict, ErrorResponse{Message: "session is completed"}
	case errors.Is(err, usecase_room.ErrCodeConflict):
		return http.StatusConflict, ErrorResponse{Message: "room key already taken"}
	case errors.Is(err, usecase_room.ErrRoomsUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Message: "unavailable"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Message: "internal error"}
	}
}
