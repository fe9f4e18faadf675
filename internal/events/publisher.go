package events

//go:generate mockgen -destination=mocks/publisher_mock.go -package=mocks ctchen222/tictactoe-arena/internal/events Publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("events")

// Publisher delivers match lifecycle events to external consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type redisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a Publisher backed by Redis Pub/Sub.
func NewRedisPublisher(rdb *redis.Client, channel string) Publisher {
	if channel == "" {
		channel = EventsChannel
	}
	return &redisPublisher{rdb: rdb, channel: channel}
}

// Publish sends event on the configured channel.
func (p *redisPublisher) Publish(ctx context.Context, event Event) error {
	ctx, span := tracer.Start(ctx, "Publisher.Publish", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.String("event.channel", p.channel),
	))
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish event")
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// NopPublisher discards every event. It is used when Redis is disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
