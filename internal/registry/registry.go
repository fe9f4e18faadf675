package registry

import (
	"ctchen222/tictactoe-arena/internal/apperror"
	"ctchen222/tictactoe-arena/internal/match"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// JoinResult describes where a joining connection was seated.
type JoinResult struct {
	Match *match.Match
	// IsNew is true when the match was allocated for this join.
	IsNew bool
	// Rejoined is true when the connection was already in this live match and nothing changed.
	Rejoined bool
}

// Recovery identifies the survivor of an aborted match so the caller can re-queue them.
type Recovery struct {
	MatchID    string
	PlayerID   string
	PlayerName string
}

// Stats is a diagnostic count of tracked state.
type Stats struct {
	TotalMatches    int `json:"totalMatches"`
	WaitingMatches  int `json:"waitingMatches"`
	PlayingMatches  int `json:"playingMatches"`
	FinishedMatches int `json:"finishedMatches"`
	TotalPlayers    int `json:"totalPlayers"`
}

// Registry maps connections to matches and pairs joining connections into matches.
//
// Registry is not safe for concurrent use; the hub serializes every call.
type Registry struct {
	matches map[string]*match.Match
	order   []string          // match ids in creation order
	players map[string]string // connection id -> match id
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for match ids.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		matches: make(map[string]*match.Match),
		players: make(map[string]string),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JoinOrCreate seats id in the oldest waiting match whose occupant is still live,
// or in a newly allocated match when there is none. A connection already seated in
// a live match gets that match back unchanged.
func (r *Registry) JoinOrCreate(id, name string) (JoinResult, error) {
	if matchID, ok := r.players[id]; ok {
		if m, live := r.matches[matchID]; live {
			return JoinResult{Match: m, Rejoined: true}, nil
		}
		slog.Warn("dropping stale registration", "player.id", id, "match.id", matchID)
		delete(r.players, id)
	}

	if m := r.findWaiting(); m != nil {
		if _, err := m.AddPlayer(id, name); err != nil {
			return JoinResult{}, fmt.Errorf("seat %s in %s: %w", id, m.ID, err)
		}
		r.players[id] = m.ID
		return JoinResult{Match: m}, nil
	}

	now := r.now()
	m := match.New(match.NewID(now), now)
	if _, err := m.AddPlayer(id, name); err != nil {
		return JoinResult{}, fmt.Errorf("seat %s in new match: %w", id, err)
	}
	r.matches[m.ID] = m
	r.order = append(r.order, m.ID)
	r.players[id] = m.ID
	return JoinResult{Match: m, IsNew: true}, nil
}

// findWaiting scans matches oldest first. Waiting matches abandoned by their only
// occupant are destroyed on the way.
func (r *Registry) findWaiting() *match.Match {
	for _, matchID := range slices.Clone(r.order) {
		m := r.matches[matchID]
		if m.State() != match.StateWaiting || m.PlayerCount() != 1 {
			continue
		}
		if r.IsLive(m.Players()[0].ID) {
			return m
		}
		r.destroy(matchID)
	}
	return nil
}

// Resolve returns the live match id is registered to.
func (r *Registry) Resolve(id string) (*match.Match, error) {
	matchID, ok := r.players[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	m, ok := r.matches[matchID]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return m, nil
}

// IsLive reports whether id has a registry mapping.
func (r *Registry) IsLive(id string) bool {
	_, ok := r.players[id]
	return ok
}

// Remove unregisters id. An unknown id is a no-op. When id leaves a playing or
// finished match the match is destroyed and its survivor, now unregistered, is
// returned for re-pairing.
func (r *Registry) Remove(id string) *Recovery {
	matchID, ok := r.players[id]
	if !ok {
		return nil
	}
	delete(r.players, id)

	m, ok := r.matches[matchID]
	if !ok {
		return nil
	}

	survivor, err := m.RemovePlayer(id)
	if err != nil {
		slog.Warn("registered player missing from match", "player.id", id, "match.id", matchID, "error", err)
	}

	if m.IsEmpty() {
		r.destroy(matchID)
		return nil
	}
	if survivor == nil {
		return nil
	}

	r.destroy(matchID)
	return &Recovery{MatchID: matchID, PlayerID: survivor.ID, PlayerName: survivor.Name}
}

// destroy frees a match and every mapping that still points at it.
func (r *Registry) destroy(matchID string) {
	m, ok := r.matches[matchID]
	if !ok {
		return
	}
	for _, p := range m.Players() {
		if r.players[p.ID] == matchID {
			delete(r.players, p.ID)
		}
	}
	delete(r.matches, matchID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == matchID })
}

// Stats counts matches by state and registered connections.
func (r *Registry) Stats() Stats {
	s := Stats{TotalMatches: len(r.matches), TotalPlayers: len(r.players)}
	for _, m := range r.matches {
		switch m.State() {
		case match.StateWaiting:
			s.WaitingMatches++
		case match.StatePlaying:
			s.PlayingMatches++
		case match.StateFinished:
			s.FinishedMatches++
		}
	}
	return s
}

// SweepOrphans destroys waiting matches whose only occupant is no longer registered
// and matches with nobody seated. It returns the number destroyed.
func (r *Registry) SweepOrphans() int {
	swept := 0
	for _, matchID := range slices.Clone(r.order) {
		m := r.matches[matchID]
		orphaned := m.IsEmpty() ||
			(m.State() == match.StateWaiting && m.PlayerCount() == 1 && !r.IsLive(m.Players()[0].ID))
		if orphaned {
			r.destroy(matchID)
			swept++
		}
	}
	return swept
}
