package hub

import (
	"context"
	"ctchen222/tictactoe-arena/internal/apperror"
	"ctchen222/tictactoe-arena/internal/events"
	"ctchen222/tictactoe-arena/internal/match"
	"ctchen222/tictactoe-arena/internal/registry"
	"ctchen222/tictactoe-arena/pkg/proto"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (h *Hub) dispatch(ctx context.Context, in inbound) {
	ctx, span := tracer.Start(ctx, "hub.dispatch", trace.WithAttributes(
		attribute.String("player.id", in.clientID),
		attribute.String("message.type", in.msg.Type),
	))
	defer span.End()

	if _, ok := h.clients[in.clientID]; !ok {
		slog.DebugContext(ctx, "Ignoring message from detached client", "player.id", in.clientID)
		return
	}

	switch in.msg.Type {
	case proto.TypeJoin:
		h.handleJoin(ctx, in.clientID, in.msg.Name)
	case proto.TypeMove:
		if in.msg.Cell == nil {
			h.reject(ctx, span, in.clientID, fmt.Errorf("move without cell: %w", apperror.ErrInvalidIndex))
			return
		}
		h.handleMove(ctx, in.clientID, *in.msg.Cell)
	case proto.TypeRematch:
		h.handleRematch(ctx, in.clientID)
	default:
		h.reject(ctx, span, in.clientID, fmt.Errorf("type %q: %w", in.msg.Type, apperror.ErrInvalidMessage))
	}
}

func (h *Hub) handleJoin(ctx context.Context, id, name string) {
	ctx, span := tracer.Start(ctx, "hub.handleJoin", trace.WithAttributes(
		attribute.String("player.id", id),
	))
	defer span.End()

	res, err := h.registry.JoinOrCreate(id, name)
	if err != nil {
		h.reject(ctx, span, id, err)
		return
	}
	span.SetAttributes(
		attribute.String("match.id", res.Match.ID),
		attribute.Bool("match.is_new", res.IsNew),
		attribute.Bool("player.rejoined", res.Rejoined),
	)

	if res.Rejoined {
		h.replayState(ctx, id, res.Match)
		return
	}
	slog.InfoContext(ctx, "Player joined", "player.id", id, "match.id", res.Match.ID, "match.is_new", res.IsNew)
	h.announceSeating(ctx, res, id)
}

// announceSeating notifies a match whose roster just changed because id was seated.
func (h *Hub) announceSeating(ctx context.Context, res registry.JoinResult, id string) {
	m := res.Match
	snap := m.Snapshot()

	if res.IsNew {
		h.metrics.MatchesCreated.Add(ctx, 1)
		h.publish(ctx, events.TypeMatchCreated, events.MatchCreatedPayload{MatchID: m.ID, PlayerID: id})
		h.send(ctx, id, &proto.ServerToClientMessage{Type: proto.TypeWaiting, Players: snap.Players})
	}

	h.broadcast(ctx, m, &proto.ServerToClientMessage{Type: proto.TypeRosterUpdated, Players: snap.Players})

	if snap.State == match.StatePlaying {
		h.startRound(ctx, m)
	}
}

// startRound announces a match that just entered the playing state.
func (h *Hub) startRound(ctx context.Context, m *match.Match) {
	snap := m.Snapshot()
	h.metrics.MatchesStarted.Add(ctx, 1)
	h.publish(ctx, events.TypeMatchStarted, events.MatchStartedPayload{
		MatchID:   m.ID,
		PlayerIDs: playerIDs(m),
		Round:     snap.Round,
	})
	slog.InfoContext(ctx, "Match started", "match.id", m.ID, "match.round", snap.Round)
	h.broadcast(ctx, m, matchStarted(snap))
}

// replayState answers a duplicate join with the current state, to the sender only.
func (h *Hub) replayState(ctx context.Context, id string, m *match.Match) {
	snap := m.Snapshot()
	switch snap.State {
	case match.StateWaiting:
		h.send(ctx, id, &proto.ServerToClientMessage{Type: proto.TypeWaiting, Players: snap.Players})
	case match.StatePlaying:
		h.send(ctx, id, matchStarted(snap))
	case match.StateFinished:
		h.send(ctx, id, matchOver(snap))
	}
}

func (h *Hub) handleMove(ctx context.Context, id string, cell int) {
	ctx, span := tracer.Start(ctx, "hub.handleMove", trace.WithAttributes(
		attribute.String("player.id", id),
		attribute.Int("move.cell", cell),
	))
	defer span.End()

	m, err := h.registry.Resolve(id)
	if err != nil {
		h.reject(ctx, span, id, err)
		return
	}
	span.SetAttributes(attribute.String("match.id", m.ID))

	snap, err := m.ApplyMove(id, cell)
	if err != nil {
		h.reject(ctx, span, id, err)
		return
	}
	h.metrics.MovesApplied.Add(ctx, 1)

	h.broadcast(ctx, m, &proto.ServerToClientMessage{Type: proto.TypeMatchUpdated, Match: &snap})
	if snap.State != match.StateFinished {
		return
	}

	event := events.MatchFinishedPayload{MatchID: m.ID, IsDraw: snap.IsDraw, Round: snap.Round}
	if snap.Winner != nil {
		event.Winner = snap.Winner.Mark
	}
	h.metrics.MatchesFinished.Add(ctx, 1)
	h.publish(ctx, events.TypeMatchFinished, event)
	slog.InfoContext(ctx, "Match finished", "match.id", m.ID, "match.winner", event.Winner, "match.is_draw", snap.IsDraw)
	h.broadcast(ctx, m, matchOver(snap))
}

func (h *Hub) handleRematch(ctx context.Context, id string) {
	ctx, span := tracer.Start(ctx, "hub.handleRematch", trace.WithAttributes(
		attribute.String("player.id", id),
	))
	defer span.End()

	m, err := h.registry.Resolve(id)
	if err != nil {
		h.reject(ctx, span, id, err)
		return
	}
	span.SetAttributes(attribute.String("match.id", m.ID))

	restarted, err := m.RequestRematch(id)
	if err != nil {
		h.reject(ctx, span, id, err)
		return
	}
	if restarted {
		h.startRound(ctx, m)
		return
	}
	snap := m.Snapshot()
	h.broadcast(ctx, m, &proto.ServerToClientMessage{Type: proto.TypeRematchPending, Match: &snap})
}

// handleDisconnect evicts id and, when that breaks up a match, re-queues the survivor
// before any other event is processed.
func (h *Hub) handleDisconnect(ctx context.Context, id string) {
	ctx, span := tracer.Start(ctx, "hub.handleDisconnect", trace.WithAttributes(
		attribute.String("player.id", id),
	))
	defer span.End()

	if h.detach(ctx, id) {
		slog.InfoContext(ctx, "Client detached", "player.id", id, "clients.count", len(h.clients))
	}

	rec := h.registry.Remove(id)
	if rec == nil {
		return
	}
	span.SetAttributes(attribute.String("match.id", rec.MatchID))
	slog.InfoContext(ctx, "Match aborted by disconnect", "match.id", rec.MatchID, "player.id", id, "survivor.id", rec.PlayerID)
	h.publish(ctx, events.TypeMatchAborted, events.MatchAbortedPayload{MatchID: rec.MatchID, PlayerID: id})

	h.send(ctx, rec.PlayerID, &proto.ServerToClientMessage{Type: proto.TypeOpponentLeft})
	h.send(ctx, rec.PlayerID, &proto.ServerToClientMessage{Type: proto.TypeFindingNewOpponent})
	h.repair(ctx, rec)
}

func (h *Hub) repair(ctx context.Context, rec *registry.Recovery) {
	ctx, span := tracer.Start(ctx, "hub.repair", trace.WithAttributes(
		attribute.String("player.id", rec.PlayerID),
		attribute.String("match.from_id", rec.MatchID),
	))
	defer span.End()

	if _, ok := h.clients[rec.PlayerID]; !ok {
		slog.InfoContext(ctx, "Survivor already gone, not re-queuing", "player.id", rec.PlayerID)
		return
	}

	res, err := h.registry.JoinOrCreate(rec.PlayerID, rec.PlayerName)
	if err != nil {
		h.reject(ctx, span, rec.PlayerID, err)
		return
	}
	span.SetAttributes(attribute.String("match.to_id", res.Match.ID))

	h.metrics.PlayersRepaired.Add(ctx, 1)
	h.publish(ctx, events.TypePlayerRepaired, events.PlayerRepairedPayload{
		PlayerID:    rec.PlayerID,
		FromMatchID: rec.MatchID,
		ToMatchID:   res.Match.ID,
	})
	slog.InfoContext(ctx, "Survivor re-queued", "player.id", rec.PlayerID, "match.id", res.Match.ID, "match.is_new", res.IsNew)
	h.announceSeating(ctx, res, rec.PlayerID)
}
