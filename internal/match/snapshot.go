package match

import (
	"ctchen222/tictactoe-arena/internal/game"
	"ctchen222/tictactoe-arena/internal/player"
)

// PlayerView is the outward form of a seated player. Connection identities are never exposed.
type PlayerView struct {
	Name string          `json:"name"`
	Mark game.PlayerMark `json:"mark"`
}

// Snapshot is the full externally visible state of a match.
type Snapshot struct {
	ID              string                  `json:"id"`
	Players         []PlayerView            `json:"players"`
	Board           game.Board              `json:"board"`
	CurrentTurn     *PlayerView             `json:"currentTurn,omitempty"`
	State           State                   `json:"state"`
	Winner          *PlayerView             `json:"winner,omitempty"`
	IsDraw          bool                    `json:"isDraw"`
	Round           int                     `json:"round"`
	Score           map[game.PlayerMark]int `json:"score"`
	ReadyForRematch []game.PlayerMark       `json:"readyForRematch"`
}

// Snapshot copies the match state so it can be sent after the match moves on.
func (m *Match) Snapshot() Snapshot {
	s := Snapshot{
		ID:              m.ID,
		Players:         Roster(m.players),
		Board:           m.board,
		State:           m.state,
		IsDraw:          m.isDraw,
		Round:           m.round,
		Score:           make(map[game.PlayerMark]int, len(m.score)),
		ReadyForRematch: make([]game.PlayerMark, 0, len(m.ready)),
	}
	for mark, n := range m.score {
		s.Score[mark] = n
	}
	if m.state == StatePlaying {
		s.CurrentTurn = viewOf(m.players[m.turn])
	}
	if m.winner != nil {
		s.Winner = viewOf(m.winner)
	}
	for _, p := range m.players {
		if _, ok := m.ready[p.ID]; ok {
			s.ReadyForRematch = append(s.ReadyForRematch, p.Mark)
		}
	}
	return s
}

// Roster converts seated players to their outward form, in seat order.
func Roster(players []*player.Player) []PlayerView {
	out := make([]PlayerView, 0, len(players))
	for _, p := range players {
		out = append(out, *viewOf(p))
	}
	return out
}

func viewOf(p *player.Player) *PlayerView {
	return &PlayerView{Name: p.Name, Mark: p.Mark}
}
