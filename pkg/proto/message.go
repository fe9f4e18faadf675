package proto

import (
	"ctchen222/tictactoe-arena/internal/match"
)

// Inbound message types
const (
	TypeJoin    = "join"
	TypeMove    = "move"
	TypeRematch = "rematch"
)

// Outbound message types
const (
	TypeWaiting            = "waiting"
	TypeRosterUpdated      = "rosterUpdated"
	TypeMatchStarted       = "matchStarted"
	TypeMatchUpdated       = "matchUpdated"
	TypeMatchOver          = "matchOver"
	TypeRematchPending     = "rematchPending"
	TypeOpponentLeft       = "opponentLeft"
	TypeFindingNewOpponent = "findingNewOpponent"
	TypeActionRejected     = "actionRejected"
)

// ClientToServerMessage represents a message from the client to the server.
// Cell is a pointer so a missing cell can be told apart from cell 0.
type ClientToServerMessage struct {
	Type string `json:"type" validate:"required,oneof=join move rematch"`
	Name string `json:"name,omitempty" validate:"required_if=Type join,max=32"`
	Cell *int   `json:"cell,omitempty" validate:"required_if=Type move"`
}

// ServerToClientMessage represents a message from the server to the client.
type ServerToClientMessage struct {
	Type    string             `json:"type" validate:"required"`
	Players []match.PlayerView `json:"players,omitempty"`
	Match   *match.Snapshot    `json:"match,omitempty"`
	Winner  *match.PlayerView  `json:"winner,omitempty"`
	Draw    bool               `json:"draw,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Message string             `json:"message,omitempty"`
}
