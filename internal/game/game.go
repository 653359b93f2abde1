package game

import "fmt"

// PlayerMark represents the mark of a player (X, O) or an empty cell.
type PlayerMark string

// Outcome is the winner value stored with a finished game.
type Outcome string

// Status is the state of a game derived from its board.
type Status string

const (
	// Player marks
	None    PlayerMark = ""
	PlayerX PlayerMark = "X"
	PlayerO PlayerMark = "O"

	// Stored outcomes
	OutcomeX    Outcome = "X"
	OutcomeO    Outcome = "O"
	OutcomeDraw Outcome = "Draw"

	// Game states
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusDraw       Status = "draw"

	// Board boundaries
	CellMin   = 0
	CellMax   = 8
	CellCount = 9
)

// WinLines lists the winning triples in the order Evaluate checks them.
var WinLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a 3x3 grid stored row-major.
type Board [CellCount]PlayerMark

// Result is derived from a board and is never stored on its own.
type Result struct {
	Status Status     `json:"status"`
	Winner PlayerMark `json:"winner,omitempty"`
}

// IsTerminal reports whether no further moves are accepted.
func (r Result) IsTerminal() bool {
	return r.Status == StatusWon || r.Status == StatusDraw
}

// Outcome converts a terminal result to its stored form.
func (r Result) Outcome() (Outcome, bool) {
	switch r.Status {
	case StatusWon:
		return Outcome(r.Winner), true
	case StatusDraw:
		return OutcomeDraw, true
	default:
		return "", false
	}
}

// Valid reports whether m is X or O.
func (m PlayerMark) Valid() bool {
	return m == PlayerX || m == PlayerO
}

// Opponent returns the other player's mark.
func (m PlayerMark) Opponent() PlayerMark {
	if m == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// Valid reports whether o is one of X, O or Draw.
func (o Outcome) Valid() bool {
	return o == OutcomeX || o == OutcomeO || o == OutcomeDraw
}

// ApplyMove returns a copy of board with player placed at index.
// It does not know whose turn it is; the Engine enforces that.
func ApplyMove(board Board, index int, player PlayerMark) (Board, error) {
	if index < CellMin || index > CellMax {
		return board, fmt.Errorf("%w: cell %d", ErrOutOfRange, index)
	}
	if !player.Valid() {
		return board, fmt.Errorf("%w: %q", ErrInvalidMark, player)
	}
	if board[index] != None {
		return board, fmt.Errorf("%w: cell %d", ErrCellOccupied, index)
	}

	board[index] = player
	return board, nil
}

// Evaluate derives the result of a board. When more than one line is complete
// the first line in WinLines decides the winner.
func Evaluate(board Board) Result {
	for _, line := range WinLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != None && a == b && b == c {
			return Result{Status: StatusWon, Winner: a}
		}
	}

	if IsBoardFull(board) {
		return Result{Status: StatusDraw}
	}
	return Result{Status: StatusInProgress}
}

// IsBoardFull checks if every cell holds a mark.
func IsBoardFull(board Board) bool {
	for _, cell := range board {
		if cell == None {
			return false
		}
	}
	return true
}

// CountMarks returns the number of X and O marks on the board.
func CountMarks(board Board) (x, o int) {
	for _, cell := range board {
		switch cell {
		case PlayerX:
			x++
		case PlayerO:
			o++
		}
	}
	return x, o
}

// CheckConsistency validates a board built outside the engine, such as one
// sent by a client with a save request.
func CheckConsistency(board Board) error {
	for i, cell := range board {
		if cell != None && !cell.Valid() {
			return fmt.Errorf("%w: cell %d holds %q", ErrInconsistentBoard, i, cell)
		}
	}

	x, o := CountMarks(board)
	if x != o && x != o+1 {
		return fmt.Errorf("%w: %d X marks against %d O marks", ErrInconsistentBoard, x, o)
	}

	xLine, oLine := hasLine(board, PlayerX), hasLine(board, PlayerO)
	switch {
	case xLine && oLine:
		return fmt.Errorf("%w: both players complete a line", ErrInconsistentBoard)
	case xLine && x != o+1:
		return fmt.Errorf("%w: X won but O moved after", ErrInconsistentBoard)
	case oLine && x != o:
		return fmt.Errorf("%w: O won but X moved after", ErrInconsistentBoard)
	}
	return nil
}

func hasLine(board Board, mark PlayerMark) bool {
	for _, line := range WinLines {
		if board[line[0]] == mark && board[line[1]] == mark && board[line[2]] == mark {
			return true
		}
	}
	return false
}
