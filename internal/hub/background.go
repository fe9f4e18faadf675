package hub

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

func (h *Hub) sweep(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "hub.sweep")
	defer span.End()

	n := h.registry.SweepOrphans()
	span.SetAttributes(attribute.Int("matches.swept", n))
	if n == 0 {
		return
	}
	h.metrics.MatchesSwept.Add(ctx, int64(n))
	slog.InfoContext(ctx, "Swept orphaned matches", "matches.swept", n)
}

func (h *Hub) logStats(ctx context.Context) {
	s := h.registry.Stats()
	slog.InfoContext(ctx, "Hub stats",
		"matches.total", s.TotalMatches,
		"matches.waiting", s.WaitingMatches,
		"matches.playing", s.PlayingMatches,
		"matches.finished", s.FinishedMatches,
		"players.total", s.TotalPlayers,
		"clients.count", len(h.clients),
	)
}
