package game

import (
	"errors"
	"testing"
)

type move struct {
	index  int
	player PlayerMark
}

func play(t *testing.T, e *Engine, moves ...move) {
	t.Helper()
	for _, m := range moves {
		if err := e.Move(m.index, m.player); err != nil {
			t.Fatalf("Move(%d, %s) unexpected error: %v", m.index, m.player, err)
		}
	}
}

func TestNewEngine(t *testing.T) {
	e := NewEngine()

	if e.Board() != (Board{}) {
		t.Errorf("expected empty board, got %v", e.Board())
	}
	if e.Turn() != PlayerX {
		t.Errorf("expected X to move first, got %q", e.Turn())
	}
	if e.MoveCount() != 0 {
		t.Errorf("expected 0 moves, got %d", e.MoveCount())
	}
	if e.Result().Status != StatusInProgress {
		t.Errorf("expected in progress, got %v", e.Result().Status)
	}
}

func TestEngine_DiagonalWin(t *testing.T) {
	e := NewEngine()
	play(t, e, move{0, X}, move{1, O}, move{4, X}, move{2, O}, move{8, X})

	want := Result{Status: StatusWon, Winner: X}
	if e.Result() != want {
		t.Errorf("Result() = %+v, want %+v", e.Result(), want)
	}
	if e.MoveCount() != 5 {
		t.Errorf("MoveCount() = %d, want 5", e.MoveCount())
	}
	if e.Turn() != None {
		t.Errorf("Turn() = %q after game over, want none", e.Turn())
	}
}

func TestEngine_Draw(t *testing.T) {
	e := NewEngine()
	// X O X
	// X O O
	// O X X
	play(t, e,
		move{0, X}, move{1, O}, move{2, X},
		move{4, O}, move{3, X}, move{5, O},
		move{7, X}, move{6, O}, move{8, X},
	)

	if e.Result().Status != StatusDraw {
		t.Errorf("Result() = %+v, want draw", e.Result())
	}
	if e.MoveCount() != 9 {
		t.Errorf("MoveCount() = %d, want 9", e.MoveCount())
	}
}

func TestEngine_RejectedMovesChangeNothing(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		player  PlayerMark
		wantErr error
	}{
		{name: "Occupied cell", index: 0, player: O, wantErr: ErrCellOccupied},
		{name: "Wrong turn", index: 5, player: X, wantErr: ErrWrongTurn},
		{name: "Out of range", index: 12, player: O, wantErr: ErrOutOfRange},
		{name: "Invalid mark", index: 5, player: "?", wantErr: ErrInvalidMark},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			play(t, e, move{0, X})
			before := e.Snapshot()

			err := e.Move(tt.index, tt.player)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Move() error = %v, want %v", err, tt.wantErr)
			}
			if !IsMoveError(err) {
				t.Errorf("IsMoveError(%v) = false", err)
			}

			after := e.Snapshot()
			if after.Board != before.Board || after.Turn != before.Turn || after.MoveCount != before.MoveCount {
				t.Errorf("state changed after rejected move: before %+v, after %+v", before, after)
			}

			// the engine stays usable
			if err := e.Move(1, O); err != nil {
				t.Errorf("engine unusable after rejected move: %v", err)
			}
		})
	}
}

func TestEngine_GameOverUntilReset(t *testing.T) {
	e := NewEngine()
	play(t, e, move{0, X}, move{3, O}, move{1, X}, move{4, O}, move{2, X})

	if err := e.Move(5, O); !errors.Is(err, ErrGameOver) {
		t.Fatalf("Move() after win error = %v, want ErrGameOver", err)
	}
	if e.MoveCount() != 5 {
		t.Errorf("MoveCount() = %d after rejected move, want 5", e.MoveCount())
	}

	e.Reset()
	if e.Board() != (Board{}) || e.Turn() != PlayerX || e.MoveCount() != 0 || e.IsTerminal() {
		t.Errorf("Reset() did not restore the initial state: %+v", e.Snapshot())
	}
	if err := e.Move(4, X); err != nil {
		t.Errorf("Move() after reset: %v", err)
	}
}

func TestEngine_ResetMidGame(t *testing.T) {
	e := NewEngine()
	play(t, e, move{4, X}, move{0, O})

	e.Reset()

	if len(e.Moves()) != 0 || e.Turn() != PlayerX {
		t.Errorf("Reset() mid game left state behind: %+v", e.Snapshot())
	}
}

func TestEngine_MoveCountMatchesAcceptedMoves(t *testing.T) {
	e := NewEngine()
	sequence := []int{4, 0, 8, 2, 1, 7, 6, 3, 5}
	accepted := 0

	for _, index := range sequence {
		// a rejected attempt before every real move
		_ = e.Move(index, e.Turn().Opponent())
		if err := e.Move(index, e.Turn()); err != nil {
			t.Fatalf("Move(%d) unexpected error: %v", index, err)
		}
		accepted++
		if e.MoveCount() != accepted {
			t.Fatalf("MoveCount() = %d, want %d", e.MoveCount(), accepted)
		}
		if e.IsTerminal() {
			break
		}
	}
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name      string
		sequence  []int
		wantCount int
		want      Result
		wantErr   error
	}{
		{
			name:      "Empty sequence",
			sequence:  nil,
			wantCount: 0,
			want:      Result{Status: StatusInProgress},
		},
		{
			name:      "X diagonal win",
			sequence:  []int{0, 1, 4, 2, 8},
			wantCount: 5,
			want:      Result{Status: StatusWon, Winner: PlayerX},
		},
		{
			name:      "O column win",
			sequence:  []int{0, 1, 3, 4, 8, 7},
			wantCount: 6,
			want:      Result{Status: StatusWon, Winner: PlayerO},
		},
		{
			name:      "Draw",
			sequence:  []int{0, 1, 2, 4, 3, 5, 7, 6, 8},
			wantCount: 9,
			want:      Result{Status: StatusDraw},
		},
		{
			name:     "Repeated cell",
			sequence: []int{0, 0},
			wantErr:  ErrCellOccupied,
		},
		{
			name:     "Move after the game ended",
			sequence: []int{0, 1, 4, 2, 8, 5},
			wantErr:  ErrGameOver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Replay(tt.sequence)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Replay() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Replay() unexpected error: %v", err)
			}
			if e.MoveCount() != tt.wantCount {
				t.Errorf("MoveCount() = %d, want %d", e.MoveCount(), tt.wantCount)
			}
			if e.Result() != tt.want {
				t.Errorf("Result() = %+v, want %+v", e.Result(), tt.want)
			}
		})
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	sequence := []int{4, 0, 2, 6, 3, 5, 8, 1, 7}

	first, err := Replay(sequence)
	if err != nil {
		t.Fatalf("Replay() unexpected error: %v", err)
	}
	second, err := Replay(sequence)
	if err != nil {
		t.Fatalf("Replay() unexpected error: %v", err)
	}

	a, b := first.Snapshot(), second.Snapshot()
	if a.Board != b.Board || a.Turn != b.Turn || a.MoveCount != b.MoveCount || a.Result != b.Result {
		t.Errorf("replays differ: %+v vs %+v", a, b)
	}
}

// Walks every game reachable by legal alternating play and checks that no
// position ever has two winners and that every result is recomputable.
func TestLegalPlayNeverHasTwoWinners(t *testing.T) {
	var walk func(e *Engine)
	positions := 0

	walk = func(e *Engine) {
		positions++
		board := e.Board()
		if hasLine(board, PlayerX) && hasLine(board, PlayerO) {
			t.Fatalf("two winners on %v", board)
		}
		if err := CheckConsistency(board); err != nil {
			t.Fatalf("reachable board reported inconsistent: %v", err)
		}
		if Evaluate(board) != e.Result() {
			t.Fatalf("Evaluate(%v) = %+v, engine says %+v", board, Evaluate(board), e.Result())
		}
		if e.IsTerminal() {
			return
		}
		for i := CellMin; i <= CellMax; i++ {
			if board[i] != None {
				continue
			}
			next, err := Replay(append(e.Moves(), i))
			if err != nil {
				t.Fatalf("Replay() unexpected error: %v", err)
			}
			walk(next)
		}
	}

	walk(NewEngine())
	if positions != 549946 {
		t.Errorf("visited %d positions, want 549946", positions)
	}
}
