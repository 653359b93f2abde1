package response

import (
	"errors"
	"net/http"

	"ctchen222/tictactoe-history/internal/api/service"
	"ctchen222/tictactoe-history/internal/game"
	"ctchen222/tictactoe-history/internal/stats"
)

type Error struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Extras  string `json:"extras"`
}

func (e Error) Error() string {
	return e.Extras
}

func NewError(success bool, code int, message string) Error {
	return Error{
		Success: success,
		Code:    code,
		Extras:  message,
	}
}

// FromError maps a domain error to the status and message sent to clients.
// Unknown errors become a 500 without internal detail.
func FromError(err error) Error {
	switch {
	// a rejected record may wrap the move error its sequence replayed into
	case errors.Is(err, service.ErrInvalidGame):
		return NewError(false, http.StatusBadRequest, err.Error())
	case game.IsMoveError(err):
		return NewError(false, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return NewError(false, http.StatusNotFound, service.ErrSessionNotFound.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return NewError(false, http.StatusNotFound, service.ErrUserNotFound.Error())
	case errors.Is(err, service.ErrAlreadySaved),
		errors.Is(err, service.ErrGameNotFinished),
		errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrConcurrentUpdate):
		return NewError(false, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return NewError(false, http.StatusUnauthorized, err.Error())
	case errors.Is(err, stats.ErrDataIntegrity):
		return NewError(false, http.StatusInternalServerError, "stored game history is corrupt")
	default:
		return NewError(false, http.StatusInternalServerError, "internal server error")
	}
}
