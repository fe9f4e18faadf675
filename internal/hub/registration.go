package hub

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (h *Hub) attach(ctx context.Context, c Client) {
	ctx, span := tracer.Start(ctx, "hub.attach", trace.WithAttributes(
		attribute.String("player.id", c.ID()),
	))
	defer span.End()

	if old, ok := h.clients[c.ID()]; ok && old != c {
		slog.WarnContext(ctx, "Replacing client with duplicate id", "player.id", c.ID())
		old.Close()
		h.metrics.ConnectionsActive.Add(ctx, -1)
	}
	h.clients[c.ID()] = c
	h.metrics.ConnectionsActive.Add(ctx, 1)
	slog.InfoContext(ctx, "Client attached", "player.id", c.ID(), "clients.count", len(h.clients))
}

// detach closes and forgets the client for id. It reports whether a client was attached.
func (h *Hub) detach(ctx context.Context, id string) bool {
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	delete(h.clients, id)
	c.Close()
	h.metrics.ConnectionsActive.Add(ctx, -1)
	return true
}

func (h *Hub) closeAll(ctx context.Context) {
	for id := range h.clients {
		h.detach(ctx, id)
	}
}

// flushDrops disconnects clients whose send queue overflowed during the last event.
// Disconnecting can notify survivors, which can overflow further queues.
func (h *Hub) flushDrops(ctx context.Context) {
	for len(h.drops) > 0 {
		id := h.drops[0]
		h.drops = h.drops[1:]
		slog.WarnContext(ctx, "Dropping slow client", "player.id", id)
		h.handleDisconnect(ctx, id)
	}
}
