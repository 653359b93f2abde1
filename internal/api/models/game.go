package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"ctchen222/tictactoe-history/internal/game"
	"ctchen222/tictactoe-history/internal/stats"
)

// BoardState is a board stored as a JSON array in a TEXT column.
type BoardState game.Board

// Value implements driver.Valuer.
func (b BoardState) Value() (driver.Value, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (b *BoardState) Scan(src any) error {
	data, err := textBytes(src)
	if err != nil {
		return err
	}
	var board game.Board
	if err := json.Unmarshal(data, &board); err != nil {
		return fmt.Errorf("failed to unmarshal board: %w", err)
	}
	*b = BoardState(board)
	return nil
}

// MoveSequence is the ordered list of cells played in a game. A nil sequence
// is stored as NULL.
type MoveSequence []int

// Value implements driver.Valuer.
func (s MoveSequence) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal([]int(s))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal move sequence: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *MoveSequence) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	data, err := textBytes(src)
	if err != nil {
		return err
	}
	var seq []int
	if err := json.Unmarshal(data, &seq); err != nil {
		return fmt.Errorf("failed to unmarshal move sequence: %w", err)
	}
	*s = seq
	return nil
}

func textBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}

// GameRecord is a finished game as stored for a user. Records are never
// updated once written.
type GameRecord struct {
	ID        int64        `db:"id" json:"id"`
	UserID    int64        `db:"user_id" json:"user_id"`
	Board     BoardState   `db:"board_state" json:"board"`
	Winner    game.Outcome `db:"winner" json:"winner"`
	MoveCount int          `db:"moves" json:"moves"`
	Sequence  MoveSequence `db:"sequence" json:"sequence,omitempty"`

	// SessionGame names the play session game a record was saved from. A
	// user has at most one record per session game.
	SessionGame *string   `db:"session_game" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// StatsRecords projects records onto the fields the aggregator reads.
func StatsRecords(records []GameRecord) []stats.Record {
	out := make([]stats.Record, len(records))
	for i, r := range records {
		out[i] = stats.Record{ID: r.ID, Winner: r.Winner, MoveCount: r.MoveCount}
	}
	return out
}

// SaveGameRequest is the body of POST /api/game/save.
type SaveGameRequest struct {
	Board    [game.CellCount]game.PlayerMark `json:"board" binding:"dive,omitempty,mark"`
	Winner   game.Outcome                    `json:"winner" binding:"required,outcome"`
	Moves    int                             `json:"moves" binding:"min=1,max=9"`
	Sequence []int                           `json:"sequence,omitempty" binding:"omitempty,max=9,dive,min=0,max=8"`

	// SessionGame is set by play sessions, never by clients.
	SessionGame string `json:"-"`
}

// SaveGameResponse is returned after a record is written.
type SaveGameResponse struct {
	GameID int64 `json:"game_id"`
}

// HistoryQuery holds the paging parameters of GET /api/game/history.
type HistoryQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// HistoryResponse is one page of a user's records, most recent first.
type HistoryResponse struct {
	Games      []GameRecord `json:"games"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
}

// MoveRequest is a move sent to a play session.
type MoveRequest struct {
	Index  *int            `json:"index" binding:"required"`
	Player game.PlayerMark `json:"player" binding:"required"`
}

// HintQuery selects the strength of a suggested move.
type HintQuery struct {
	Difficulty string `form:"difficulty" binding:"difficulty"`
}

// SessionResponse describes a play session.
type SessionResponse struct {
	ID       string        `json:"id"`
	State    game.Snapshot `json:"state"`
	RecordID int64         `json:"record_id,omitempty"`
}

// HintResponse carries a suggested cell.
type HintResponse struct {
	Index int `json:"index"`
}
