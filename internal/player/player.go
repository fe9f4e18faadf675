package player

import "ctchen222/tictactoe-arena/internal/game"

// Player is a connection seated in a match. It is immutable for the match's lifetime;
// re-entering matchmaking after a disconnect creates a fresh Player.
type Player struct {
	ID   string // opaque connection identity assigned by the transport
	Name string
	Mark game.PlayerMark
}

// NewPlayer creates a seated player.
func NewPlayer(id, name string, mark game.PlayerMark) *Player {
	return &Player{ID: id, Name: name, Mark: mark}
}
