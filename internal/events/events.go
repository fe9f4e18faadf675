package events

import (
	"ctchen222/tictactoe-arena/internal/game"
	"encoding/json"
	"fmt"
)

// Pub/Sub channel constants
const (
	EventsChannel = "channel:events"
)

// Event types
const (
	TypeMatchCreated   = "match_created"
	TypeMatchStarted   = "match_started"
	TypeMatchFinished  = "match_finished"
	TypeMatchAborted   = "match_aborted"
	TypePlayerRepaired = "player_repaired"
)

// Event represents a global message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MatchCreatedPayload is the payload for the "match_created" event.
type MatchCreatedPayload struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// MatchStartedPayload is the payload for the "match_started" event. Round is 1 for the
// first game and increments on every rematch.
type MatchStartedPayload struct {
	MatchID   string   `json:"match_id"`
	PlayerIDs []string `json:"player_ids"`
	Round     int      `json:"round"`
}

// MatchFinishedPayload is the payload for the "match_finished" event.
type MatchFinishedPayload struct {
	MatchID string          `json:"match_id"`
	Winner  game.PlayerMark `json:"winner,omitempty"`
	IsDraw  bool            `json:"is_draw"`
	Round   int             `json:"round"`
}

// MatchAbortedPayload is the payload for the "match_aborted" event.
type MatchAbortedPayload struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// PlayerRepairedPayload is the payload for the "player_repaired" event.
type PlayerRepairedPayload struct {
	PlayerID    string `json:"player_id"`
	FromMatchID string `json:"from_match_id"`
	ToMatchID   string `json:"to_match_id"`
}

// New wraps payload in an Event of the given type.
func New(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: raw}, nil
}
