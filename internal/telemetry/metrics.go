package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the hub's instruments.
type Metrics struct {
	MatchesCreated    metric.Int64Counter
	MatchesStarted    metric.Int64Counter
	MatchesFinished   metric.Int64Counter
	MovesApplied      metric.Int64Counter
	ActionsRejected   metric.Int64Counter
	PlayersRepaired   metric.Int64Counter
	MatchesSwept      metric.Int64Counter
	ConnectionsActive metric.Int64UpDownCounter
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.MatchesCreated, "matches.created", "Matches allocated by matchmaking"},
		{&m.MatchesStarted, "matches.started", "Rounds started, including rematches"},
		{&m.MatchesFinished, "matches.finished", "Rounds that ended in a win or draw"},
		{&m.MovesApplied, "moves.applied", "Moves accepted"},
		{&m.ActionsRejected, "actions.rejected", "Inbound actions rejected, by reason"},
		{&m.PlayersRepaired, "players.repaired", "Survivors re-queued after an opponent disconnected"},
		{&m.MatchesSwept, "matches.swept", "Orphaned matches removed by the sweeper"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}
	if m.ConnectionsActive, err = meter.Int64UpDownCounter("connections.active",
		metric.WithDescription("Connections currently attached to the hub")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Rejected records a rejected action with its wire code.
func (m *Metrics) Rejected(ctx context.Context, code string) {
	m.ActionsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", code)))
}
