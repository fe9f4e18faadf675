package server

import (
	"context"
	"ctchen222/tictactoe-arena/internal/apperror"
	"ctchen222/tictactoe-arena/internal/config"
	"ctchen222/tictactoe-arena/internal/hub"
	"ctchen222/tictactoe-arena/internal/validator"
	"ctchen222/tictactoe-arena/pkg/proto"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client is closed")
)

// wsClient is one websocket connection. The hub owns its send side; readPump feeds the hub.
type wsClient struct {
	id   string
	conn *websocket.Conn
	cfg  config.WebSocketConfig

	mu     sync.Mutex
	send   chan *proto.ServerToClientMessage
	closed bool
}

func newClient(id string, conn *websocket.Conn, buffer int, cfg config.WebSocketConfig) *wsClient {
	return &wsClient{
		id:   id,
		conn: conn,
		cfg:  cfg,
		send: make(chan *proto.ServerToClientMessage, buffer),
	}
}

func (c *wsClient) ID() string { return c.id }

// Send queues msg without blocking.
func (c *wsClient) Send(msg *proto.ServerToClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close ends the write pump, which sends a close frame and closes the connection.
func (c *wsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// rejectLocally answers malformed input without involving the hub.
func (c *wsClient) rejectLocally(err error) {
	msg := &proto.ServerToClientMessage{
		Type:    proto.TypeActionRejected,
		Reason:  apperror.Code(err),
		Message: err.Error(),
	}
	if sendErr := c.Send(msg); sendErr != nil {
		slog.Warn("Could not queue rejection", "player.id", c.id, "error", sendErr)
	}
}

// readPump pumps messages from the websocket connection to the hub until the connection
// fails, then reports the disconnect exactly once.
func (c *wsClient) readPump(ctx context.Context, h *hub.Hub) {
	ctx, span := tracer.Start(ctx, "server.readPump", trace.WithAttributes(
		attribute.String("player.id", c.id),
	))
	defer span.End()

	defer func() {
		if err := h.Unregister(context.Background(), c.id); err != nil && !errors.Is(err, hub.ErrClosed) {
			slog.ErrorContext(ctx, "Failed to unregister client", "player.id", c.id, "error", err)
		}
		c.conn.Close()
		slog.InfoContext(ctx, "Player disconnected", "player.id", c.id)
	}()

	c.conn.SetReadLimit(c.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "Player connection error", "player.id", c.id, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "Player connection error")
			}
			return
		}

		var msg proto.ClientToServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.rejectLocally(fmt.Errorf("%w: %v", apperror.ErrInvalidMessage, err))
			continue
		}
		if err := validator.GetValidator().Struct(msg); err != nil {
			c.rejectLocally(fmt.Errorf("%w: %v", apperror.ErrInvalidMessage, err))
			continue
		}
		if err := h.Deliver(ctx, c.id, &msg); err != nil {
			slog.WarnContext(ctx, "Hub refused message", "player.id", c.id, "error", err)
			return
		}
	}
}

// writePump pumps queued messages and keepalive pings to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Warn("Error writing message to player", "player.id", c.id, "message.type", msg.Type, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Warn("Failed to send ping to player, assuming disconnect", "player.id", c.id, "error", err)
				return
			}
		}
	}
}
