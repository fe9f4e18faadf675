package match

import (
	"ctchen222/tictactoe-arena/internal/apperror"
	"ctchen222/tictactoe-arena/internal/game"
	"ctchen222/tictactoe-arena/internal/player"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a match.
type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
	StateAborted  State = "aborted"
)

const maxPlayers = 2

// Match owns one two-player session: board, turn order, terminal state and rematch readiness.
//
// A Match is not safe for concurrent use. The hub goroutine is its only owner.
type Match struct {
	ID        string
	CreatedAt time.Time

	players []*player.Player
	board   game.Board
	turn    int
	state   State
	winner  *player.Player
	isDraw  bool
	ready   map[string]struct{}
	score   map[game.PlayerMark]int
	round   int
}

// NewID returns a unique match id made of the creation time and a random suffix.
func NewID(now time.Time) string {
	return fmt.Sprintf("match-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// New creates an empty match in the waiting state.
func New(id string, createdAt time.Time) *Match {
	return &Match{
		ID:        id,
		CreatedAt: createdAt,
		players:   make([]*player.Player, 0, maxPlayers),
		state:     StateWaiting,
		ready:     make(map[string]struct{}, maxPlayers),
		score:     map[game.PlayerMark]int{game.PlayerX: 0, game.PlayerO: 0},
	}
}

// AddPlayer seats a player. The first seat gets X, the second O; seating the second
// player starts the game with X to move.
func (m *Match) AddPlayer(id, name string) (*player.Player, error) {
	if len(m.players) >= maxPlayers {
		return nil, apperror.ErrRoomFull
	}
	if m.state != StateWaiting {
		return nil, apperror.ErrAlreadyInProgress
	}
	if m.HasPlayer(id) {
		return nil, apperror.ErrAlreadyRegistered
	}

	mark := game.PlayerX
	if len(m.players) == 1 {
		mark = game.PlayerO
	}
	p := player.NewPlayer(id, name, mark)
	m.players = append(m.players, p)

	if len(m.players) == maxPlayers {
		m.state = StatePlaying
		m.turn = 0
		m.round = 1
	}
	return p, nil
}

// ApplyMove places the mover's mark on cell and advances the game. Exactly one of
// win, draw or turn change happens on success; on failure nothing changes.
func (m *Match) ApplyMove(id string, cell int) (Snapshot, error) {
	if m.state != StatePlaying {
		return Snapshot{}, apperror.ErrNotInProgress
	}
	mover := m.players[m.turn]
	if mover.ID != id {
		return Snapshot{}, apperror.ErrNotYourTurn
	}
	if !game.InBounds(cell) {
		return Snapshot{}, fmt.Errorf("cell %d: %w", cell, apperror.ErrInvalidIndex)
	}
	if m.board[cell] != game.None {
		return Snapshot{}, fmt.Errorf("cell %d: %w", cell, apperror.ErrCellOccupied)
	}

	m.board[cell] = mover.Mark

	switch m.board.Evaluate(mover.Mark) {
	case game.Win:
		m.state = StateFinished
		m.winner = mover
		m.score[mover.Mark]++
	case game.Draw:
		m.state = StateFinished
		m.isDraw = true
	default:
		m.turn = 1 - m.turn
	}
	return m.Snapshot(), nil
}

// RequestRematch marks id as ready for another round. It reports whether both
// seated players are now ready, in which case the match has restarted.
func (m *Match) RequestRematch(id string) (bool, error) {
	if m.state != StateFinished {
		return false, apperror.ErrNotFinished
	}
	if !m.HasPlayer(id) {
		return false, apperror.ErrNotFound
	}

	m.ready[id] = struct{}{}
	for _, p := range m.players {
		if _, ok := m.ready[p.ID]; !ok {
			return false, nil
		}
	}

	m.resetForNewRound()
	return true, nil
}

func (m *Match) resetForNewRound() {
	m.board.Reset()
	m.winner = nil
	m.isDraw = false
	clear(m.ready)
	m.turn = 0
	m.state = StatePlaying
	m.round++
}

// RemovePlayer unseats id. Leaving a playing or finished match aborts it, and the
// other seated player, if any, is returned so the caller can re-pair them.
func (m *Match) RemovePlayer(id string) (*player.Player, error) {
	idx := m.indexOf(id)
	if idx < 0 {
		return nil, apperror.ErrNotFound
	}
	m.players = append(m.players[:idx], m.players[idx+1:]...)
	delete(m.ready, id)

	if m.state != StatePlaying && m.state != StateFinished {
		return nil, nil
	}

	m.state = StateAborted
	clear(m.ready)
	if len(m.players) == 0 {
		return nil, nil
	}
	return m.players[0], nil
}

// State returns the current lifecycle state.
func (m *Match) State() State {
	return m.state
}

// Players returns the seated players in seat order.
func (m *Match) Players() []*player.Player {
	out := make([]*player.Player, len(m.players))
	copy(out, m.players)
	return out
}

// PlayerCount returns the number of seated players.
func (m *Match) PlayerCount() int {
	return len(m.players)
}

// IsEmpty reports whether nobody is seated.
func (m *Match) IsEmpty() bool {
	return len(m.players) == 0
}

// HasPlayer reports whether id is seated.
func (m *Match) HasPlayer(id string) bool {
	return m.indexOf(id) >= 0
}

func (m *Match) indexOf(id string) int {
	for i, p := range m.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
