package hub

import (
	"context"
	"ctchen222/tictactoe-arena/internal/apperror"
	"ctchen222/tictactoe-arena/internal/events"
	"ctchen222/tictactoe-arena/internal/match"
	"ctchen222/tictactoe-arena/pkg/proto"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// send queues msg for one client. A client whose queue is full is scheduled for removal.
func (h *Hub) send(ctx context.Context, id string, msg *proto.ServerToClientMessage) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	if err := c.Send(msg); err != nil {
		slog.WarnContext(ctx, "Error queueing message for player", "player.id", id, "message.type", msg.Type, "error", err)
		if !slices.Contains(h.drops, id) {
			h.drops = append(h.drops, id)
		}
	}
}

// broadcast sends msg to every player seated in m.
func (h *Hub) broadcast(ctx context.Context, m *match.Match, msg *proto.ServerToClientMessage) {
	for _, p := range m.Players() {
		h.send(ctx, p.ID, msg)
	}
}

// reject answers a failed action to its sender only.
func (h *Hub) reject(ctx context.Context, span trace.Span, id string, err error) {
	code := apperror.Code(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, code)
	h.metrics.Rejected(ctx, code)
	slog.DebugContext(ctx, "Action rejected", "player.id", id, "reason", code, "error", err)
	h.send(ctx, id, &proto.ServerToClientMessage{
		Type:    proto.TypeActionRejected,
		Reason:  code,
		Message: err.Error(),
	})
}

// publish queues an event for the publisher goroutine. Events are dropped when the outbox is full.
func (h *Hub) publish(ctx context.Context, eventType string, payload any) {
	event, err := events.New(eventType, payload)
	if err != nil {
		slog.ErrorContext(ctx, "Could not build event", "event.type", eventType, "error", err)
		return
	}
	select {
	case h.outbox <- event:
	default:
		slog.WarnContext(ctx, "Event outbox full, dropping event", "event.type", eventType)
	}
}

func (h *Hub) runPublisher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.outbox:
			if err := h.publisher.Publish(ctx, event); err != nil {
				slog.ErrorContext(ctx, "Failed to publish event", "event.type", event.Type, "error", err)
			}
		}
	}
}

func matchStarted(snap match.Snapshot) *proto.ServerToClientMessage {
	return &proto.ServerToClientMessage{Type: proto.TypeMatchStarted, Players: snap.Players, Match: &snap}
}

func matchOver(snap match.Snapshot) *proto.ServerToClientMessage {
	return &proto.ServerToClientMessage{
		Type:   proto.TypeMatchOver,
		Match:  &snap,
		Winner: snap.Winner,
		Draw:   snap.IsDraw,
	}
}

func playerIDs(m *match.Match) []string {
	players := m.Players()
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	return ids
}
