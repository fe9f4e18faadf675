package server

import (
	"context"
	"ctchen222/tictactoe-arena/internal/api/response"
	"ctchen222/tictactoe-arena/internal/config"
	"ctchen222/tictactoe-arena/internal/hub"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const statsTimeout = 2 * time.Second

var tracer = otel.Tracer("server")

type Server struct {
	hub      *hub.Hub
	cfg      config.Config
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

func NewServer(h *hub.Hub, cfg config.Config) *Server {
	s := &Server{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	return s
}

// Engine returns the HTTP handler serving the websocket endpoint, the stats API and static files.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/ws", s.handleWebSocket)
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	api.GET("/stats", s.handleStats)

	if dir := s.cfg.HTTP.StaticDir; dir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(dir))))
	}
	return r
}

// handleWebSocket upgrades the connection, attaches it to the hub under a fresh identity
// and serves it until it drops.
func (s *Server) handleWebSocket(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", c.Request.URL.String()),
		attribute.String("http.method", c.Request.Method),
	))
	defer span.End()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	playerID := uuid.NewString()
	span.SetAttributes(attribute.String("player.id", playerID))

	client := newClient(playerID, conn, s.cfg.Hub.SendBuffer, s.cfg.WebSocket)
	if err := s.hub.Register(ctx, client); err != nil {
		slog.ErrorContext(ctx, "Failed to register client", "player.id", playerID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to register client")
		conn.Close()
		return
	}
	slog.InfoContext(ctx, "Player connected", "player.id", playerID, "remote.addr", conn.RemoteAddr().String())

	go client.writePump()
	client.readPump(ctx, s.hub)
}

func (s *Server) handleStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	stats, err := s.hub.Stats(ctx)
	if err != nil {
		response.ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	response.SuccessResponse(c, stats)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.DebugContext(c.Request.Context(), "HTTP request",
			"http.method", c.Request.Method,
			"http.path", c.Request.URL.Path,
			"http.status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
