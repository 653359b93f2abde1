// Package stats folds a user's finished games into a summary.
package stats

import (
	"errors"
	"fmt"

	"ctchen222/tictactoe-history/internal/game"
)

// ErrDataIntegrity is returned when a stored record holds a winner that is
// not one of X, O or Draw.
var ErrDataIntegrity = errors.New("data integrity violation")

// Summary aggregates the results of a user's games.
type Summary struct {
	TotalGames   int     `json:"total_games"`
	XWins        int     `json:"x_wins"`
	OWins        int     `json:"o_wins"`
	Draws        int     `json:"draws"`
	AverageMoves float64 `json:"average_moves"`
}

// Record is the part of a stored game the summary needs.
type Record struct {
	ID        int64
	Winner    game.Outcome
	MoveCount int
}

// Summarize counts wins and draws and averages the move counts. An empty
// slice yields the zero Summary.
func Summarize(records []Record) (Summary, error) {
	var s Summary
	totalMoves := 0

	for _, r := range records {
		switch r.Winner {
		case game.OutcomeX:
			s.XWins++
		case game.OutcomeO:
			s.OWins++
		case game.OutcomeDraw:
			s.Draws++
		default:
			return Summary{}, fmt.Errorf("%w: record %d has winner %q", ErrDataIntegrity, r.ID, r.Winner)
		}
		totalMoves += r.MoveCount
	}

	s.TotalGames = len(records)
	if s.TotalGames > 0 {
		s.AverageMoves = float64(totalMoves) / float64(s.TotalGames)
	}
	return s, nil
}
