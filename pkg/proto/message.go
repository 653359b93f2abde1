package proto

import "ctchen222/tictactoe-history/internal/game"

// Client message types.
const (
	TypeMove  = "move"
	TypeReset = "reset"
	TypeSave  = "save"
	TypeHint  = "hint"
)

// Server message types.
const (
	TypeUpdate = "update"
	TypeSaved  = "saved"
	TypeError  = "error"
)

// ClientMessage represents a message from the client to the server.
type ClientMessage struct {
	Type       string          `json:"type" binding:"required,oneof=move reset save hint"`
	Index      *int            `json:"index,omitempty" binding:"required_if=Type move"`
	Player     game.PlayerMark `json:"player,omitempty"`
	Difficulty string          `json:"difficulty,omitempty" binding:"difficulty"`
}

// ServerMessage represents a message from the server to the client.
type ServerMessage struct {
	Type     string         `json:"type"`
	Code     int            `json:"code,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	State    *game.Snapshot `json:"state,omitempty"`
	RecordID int64          `json:"record_id,omitempty"`
	Hint     *int           `json:"hint,omitempty"`
}
