package game

import "fmt"

// Engine owns the state of one game. It is not safe for concurrent use;
// each play session holds its own instance.
type Engine struct {
	board     Board
	turn      PlayerMark
	moveCount int
	result    Result
	moves     []int
}

// Snapshot is the renderable state of an engine.
type Snapshot struct {
	Board     Board      `json:"board"`
	Turn      PlayerMark `json:"turn,omitempty"`
	MoveCount int        `json:"move_count"`
	Result    Result     `json:"result"`
	Moves     []int      `json:"moves"`
}

// NewEngine starts a game with an empty board and X to move.
func NewEngine() *Engine {
	e := &Engine{}
	e.Reset()
	return e
}

// Replay rebuilds an engine from an ordered list of cell indices, with X
// playing first and the players alternating.
func Replay(sequence []int) (*Engine, error) {
	e := NewEngine()
	for i, index := range sequence {
		if err := e.Move(index, e.turn); err != nil {
			return nil, fmt.Errorf("failed to replay move %d: %w", i+1, err)
		}
	}
	return e, nil
}

// Reset returns the engine to its initial state from any state.
func (e *Engine) Reset() {
	e.board = Board{}
	e.turn = PlayerX
	e.moveCount = 0
	e.result = Result{Status: StatusInProgress}
	e.moves = nil
}

// Move places player at index. A rejected move leaves the engine unchanged.
func (e *Engine) Move(index int, player PlayerMark) error {
	if e.result.IsTerminal() {
		return ErrGameOver
	}

	board, err := ApplyMove(e.board, index, player)
	if err != nil {
		return err
	}
	if player != e.turn {
		return fmt.Errorf("%w: %s to move", ErrWrongTurn, e.turn)
	}

	e.board = board
	e.moveCount++
	e.moves = append(e.moves, index)
	e.result = Evaluate(e.board)

	if e.result.IsTerminal() {
		e.turn = None
	} else {
		e.turn = player.Opponent()
	}
	return nil
}

func (e *Engine) Board() Board { return e.board }

// Turn is None once the game is over.
func (e *Engine) Turn() PlayerMark { return e.turn }

func (e *Engine) MoveCount() int { return e.moveCount }

func (e *Engine) Result() Result { return e.result }

func (e *Engine) IsTerminal() bool { return e.result.IsTerminal() }

// Moves returns a copy of the accepted move sequence.
func (e *Engine) Moves() []int {
	moves := make([]int, len(e.moves))
	copy(moves, e.moves)
	return moves
}

// Snapshot copies the current state for rendering or storage.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Board:     e.board,
		Turn:      e.turn,
		MoveCount: e.moveCount,
		Result:    e.result,
		Moves:     e.Moves(),
	}
}
