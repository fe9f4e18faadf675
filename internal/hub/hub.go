package hub

import (
	"context"
	"ctchen222/tictactoe-arena/internal/config"
	"ctchen222/tictactoe-arena/internal/events"
	"ctchen222/tictactoe-arena/internal/registry"
	"ctchen222/tictactoe-arena/internal/telemetry"
	"ctchen222/tictactoe-arena/pkg/proto"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const outboxSize = 64

var tracer = otel.Tracer("hub")

// ErrClosed is returned by the hub's entry points once Run has returned.
var ErrClosed = errors.New("hub is closed")

// Client is a connection attached to the hub.
type Client interface {
	ID() string
	// Send queues msg for delivery. It must not block; a full queue is an error.
	Send(msg *proto.ServerToClientMessage) error
	// Close stops delivery. The hub calls it once, after detaching the client.
	Close()
}

type inbound struct {
	ctx      context.Context
	clientID string
	msg      *proto.ClientToServerMessage
}

// Hub serializes every inbound event through a single goroutine. It is the only owner of
// the registry and of every match the registry tracks.
type Hub struct {
	cfg       config.HubConfig
	registry  *registry.Registry
	publisher events.Publisher
	metrics   *telemetry.Metrics

	clients map[string]Client
	drops   []string

	register   chan Client
	unregister chan string
	incoming   chan inbound
	statsReq   chan chan registry.Stats
	outbox     chan events.Event
	done       chan struct{}
}

// New creates a hub. Call Run to start processing.
func New(cfg config.HubConfig, publisher events.Publisher) (*Hub, error) {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	metrics, err := telemetry.NewMetrics(otel.Meter("hub"))
	if err != nil {
		return nil, fmt.Errorf("failed to create hub metrics: %w", err)
	}
	return &Hub{
		cfg:        cfg,
		registry:   registry.New(),
		publisher:  publisher,
		metrics:    metrics,
		clients:    make(map[string]Client),
		register:   make(chan Client),
		unregister: make(chan string),
		incoming:   make(chan inbound),
		statsReq:   make(chan chan registry.Stats),
		outbox:     make(chan events.Event, outboxSize),
		done:       make(chan struct{}),
	}, nil
}

// Run processes events until ctx is cancelled. Every attached client is closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	go h.runPublisher(ctx)

	sweep := time.NewTicker(h.cfg.SweepInterval)
	stats := time.NewTicker(h.cfg.StatsInterval)
	defer func() {
		sweep.Stop()
		stats.Stop()
	}()

	slog.InfoContext(ctx, "Hub started", "sweep_interval", h.cfg.SweepInterval, "stats_interval", h.cfg.StatsInterval)
	for {
		select {
		case <-ctx.Done():
			h.closeAll(ctx)
			slog.InfoContext(ctx, "Hub stopped")
			return

		case c := <-h.register:
			h.attach(ctx, c)

		case id := <-h.unregister:
			h.handleDisconnect(ctx, id)

		case in := <-h.incoming:
			h.dispatch(trace.ContextWithSpanContext(ctx, trace.SpanContextFromContext(in.ctx)), in)

		case reply := <-h.statsReq:
			reply <- h.registry.Stats()

		case <-sweep.C:
			h.sweep(ctx)

		case <-stats.C:
			h.logStats(ctx)
		}
		h.flushDrops(ctx)
	}
}

// Register attaches c. Messages for c are accepted only after Register returns.
func (h *Hub) Register(ctx context.Context, c Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister reports that the connection id is gone. Unknown ids are ignored.
func (h *Hub) Unregister(ctx context.Context, id string) error {
	select {
	case h.unregister <- id:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver hands an inbound message from connection id to the hub.
func (h *Hub) Deliver(ctx context.Context, id string, msg *proto.ClientToServerMessage) error {
	select {
	case h.incoming <- inbound{ctx: ctx, clientID: id, msg: msg}:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the registry counts as seen by the hub goroutine.
func (h *Hub) Stats(ctx context.Context) (registry.Stats, error) {
	reply := make(chan registry.Stats, 1)
	select {
	case h.statsReq <- reply:
	case <-h.done:
		return registry.Stats{}, ErrClosed
	case <-ctx.Done():
		return registry.Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return registry.Stats{}, ctx.Err()
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
