package bot

import (
	"math/rand/v2"
	"strings"

	"ctchen222/tictactoe-history/internal/game"
)

// Difficulty levels accepted by CalculateNextMove.
const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
)

var (
	corners = []int{0, 2, 6, 8}
	sides   = []int{1, 3, 5, 7}
)

// MoveCalculator suggests moves for play sessions.
type MoveCalculator struct{}

// CalculateNextMove calls the package-level function to satisfy the session hinter.
func (c *MoveCalculator) CalculateNextMove(board game.Board, mark game.PlayerMark, difficulty string) int {
	return CalculateNextMove(board, mark, difficulty)
}

// ValidDifficulty reports whether d names a known level. Empty means the default.
func ValidDifficulty(d string) bool {
	switch strings.ToLower(d) {
	case "", Easy, Medium, Hard:
		return true
	}
	return false
}

// CalculateNextMove suggests a cell for mark, or -1 when the board is full.
func CalculateNextMove(board game.Board, mark game.PlayerMark, difficulty string) int {
	switch strings.ToLower(difficulty) {
	case Easy:
		return easyMove(board)
	case Medium:
		return mediumMove(board, mark)
	default:
		return hardMove(board, mark)
	}
}

// easyMove makes a completely random move.
func easyMove(board game.Board) int {
	return randomFrom(board, nil)
}

// mediumMove will win if it can, block if it must, otherwise move randomly.
func mediumMove(board game.Board, mark game.PlayerMark) int {
	if cell, ok := findWinningMove(board, mark); ok {
		return cell
	}
	if cell, ok := findWinningMove(board, mark.Opponent()); ok {
		return cell
	}
	return easyMove(board)
}

// hardMove wins, blocks, then prefers the center, a corner and a side in that order.
func hardMove(board game.Board, mark game.PlayerMark) int {
	if cell, ok := findWinningMove(board, mark); ok {
		return cell
	}
	if cell, ok := findWinningMove(board, mark.Opponent()); ok {
		return cell
	}
	if board[4] == game.None {
		return 4
	}
	if cell := randomFrom(board, corners); cell != -1 {
		return cell
	}
	return randomFrom(board, sides)
}

// randomFrom picks a random empty cell among candidates, or among all cells
// when candidates is nil.
func randomFrom(board game.Board, candidates []int) int {
	if candidates == nil {
		candidates = []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	}

	var available []int
	for _, cell := range candidates {
		if board[cell] == game.None {
			available = append(available, cell)
		}
	}
	if len(available) == 0 {
		return -1
	}
	return available[rand.IntN(len(available))]
}

// findWinningMove returns the empty cell that completes a line for mark.
func findWinningMove(board game.Board, mark game.PlayerMark) (int, bool) {
	for _, line := range game.WinLines {
		owned, empty := 0, -1
		for _, cell := range line {
			switch board[cell] {
			case mark:
				owned++
			case game.None:
				empty = cell
			}
		}
		if owned == 2 && empty != -1 {
			return empty, true
		}
	}
	return -1, false
}
