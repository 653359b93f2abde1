package play

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ctchen222/tictactoe-history/internal/api/middleware"
	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/api/service"
	"ctchen222/tictactoe-history/pkg/proto"
)

const (
	maxMessageSize = 512
	pongWait       = 30 * time.Second
)

// Handler upgrades requests on /ws/sessions/:id.
type Handler struct {
	sessions service.SessionService
	upgrader websocket.Upgrader
}

// NewHandler keeps gorilla's default origin check, so only same-origin pages
// can open a session socket.
func NewHandler(sessions service.SessionService) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Stream checks that the caller owns the session, upgrades the connection,
// sends the current state and then serves the session until disconnect.
func (h *Handler) Stream(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")

	ctx, span := tracer.Start(c.Request.Context(), "play.Stream", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	session, err := h.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session lookup failed")
		response.AbortWithError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		slog.WarnContext(ctx, "Failed to upgrade connection", "session.id", sessionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	slog.InfoContext(ctx, "Player connected", "session.id", sessionID, "user.id", userID)
	client := NewClient(sessionID, userID, conn, h.sessions)
	if err := client.Send(ctx, stateMessage(proto.TypeUpdate, session)); err != nil {
		conn.Close()
		return
	}
	client.Serve(ctx)
}
