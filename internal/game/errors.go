package game

import "errors"

// Move errors. All of them leave the engine unchanged and usable.
var (
	ErrOutOfRange   = errors.New("cell index out of range")
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrWrongTurn    = errors.New("it's not your turn")
	ErrGameOver     = errors.New("game is already finished")
	ErrInvalidMark  = errors.New("invalid player mark")
)

// ErrInconsistentBoard is returned for boards that legal play cannot reach.
var ErrInconsistentBoard = errors.New("inconsistent board")

var moveErrors = []error{ErrOutOfRange, ErrCellOccupied, ErrWrongTurn, ErrGameOver, ErrInvalidMark}

// IsMoveError reports whether err is a rejected move.
func IsMoveError(err error) bool {
	for _, target := range moveErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
