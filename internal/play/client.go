package play

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/api/service"
	"ctchen222/tictactoe-history/internal/validator"
	"ctchen222/tictactoe-history/pkg/proto"
)

var heartbeatInterval = 10 * time.Second

var tracer = otel.Tracer("play")

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Client drives one play session over one connection.
type Client struct {
	sessionID string
	userID    int64
	conn      Connection
	sessions  service.SessionService

	writeMu sync.Mutex
}

func NewClient(sessionID string, userID int64, conn Connection, sessions service.SessionService) *Client {
	return &Client{
		sessionID: sessionID,
		userID:    userID,
		conn:      conn,
		sessions:  sessions,
	}
}

// Serve reads messages until the connection fails or ctx ends, answering
// each one. It closes the connection on return.
func (cl *Client) Serve(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "play.Serve", trace.WithAttributes(
		attribute.String("session.id", cl.sessionID),
		attribute.Int64("user.id", cl.userID),
	))
	defer span.End()

	done := make(chan struct{})
	defer func() {
		close(done)
		cl.conn.Close()
	}()
	go cl.heartbeat(ctx, done)

	for {
		_, msg, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "Player connection error", "session.id", cl.sessionID, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "Player connection error")
			}
			slog.DebugContext(ctx, "Player disconnected", "session.id", cl.sessionID)
			return
		}
		if err := cl.Send(ctx, cl.HandleMessage(ctx, msg)); err != nil {
			return
		}
	}
}

func (cl *Client) heartbeat(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			cl.writeMu.Lock()
			err := cl.conn.WriteMessage(websocket.PingMessage, nil)
			cl.writeMu.Unlock()
			if err != nil {
				slog.WarnContext(ctx, "Failed to send ping to player, assuming disconnect", "session.id", cl.sessionID, "error", err)
				return
			}
		}
	}
}

// Send writes message as a JSON text frame.
func (cl *Client) Send(ctx context.Context, message *proto.ServerMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "error", err)
		return err
	}

	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()
	if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.WarnContext(ctx, "error writing message to player", "session.id", cl.sessionID, "error", err)
		return err
	}
	return nil
}

// HandleMessage applies one client message to the session and returns the reply.
func (cl *Client) HandleMessage(ctx context.Context, raw []byte) *proto.ServerMessage {
	ctx, span := tracer.Start(ctx, "play.HandleMessage", trace.WithAttributes(
		attribute.String("session.id", cl.sessionID),
	))
	defer span.End()

	var message proto.ClientMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		slog.WarnContext(ctx, "error unmarshalling message", "session.id", cl.sessionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error unmarshalling message")
		return &proto.ServerMessage{Type: proto.TypeError, Code: http.StatusBadRequest, Reason: "malformed message"}
	}
	if err := validator.GetValidator().Struct(message); err != nil {
		slog.WarnContext(ctx, "invalid message from player", "session.id", cl.sessionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid message format")
		return &proto.ServerMessage{Type: proto.TypeError, Code: http.StatusBadRequest, Reason: err.Error()}
	}
	span.SetAttributes(attribute.String("message.type", message.Type))

	var (
		session *models.SessionResponse
		err     error
	)
	switch message.Type {
	case proto.TypeMove:
		session, err = cl.sessions.Move(ctx, cl.userID, cl.sessionID, *message.Index, message.Player)
	case proto.TypeReset:
		session, err = cl.sessions.Reset(ctx, cl.userID, cl.sessionID)
	case proto.TypeSave:
		session, err = cl.sessions.Save(ctx, cl.userID, cl.sessionID)
	case proto.TypeHint:
		var index int
		index, err = cl.sessions.Hint(ctx, cl.userID, cl.sessionID, message.Difficulty)
		if err == nil {
			return &proto.ServerMessage{Type: proto.TypeHint, Hint: &index}
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Message rejected")
		return errorMessage(err)
	}

	reply := stateMessage(proto.TypeUpdate, session)
	if message.Type == proto.TypeSave {
		reply.Type = proto.TypeSaved
	}
	return reply
}

func stateMessage(messageType string, session *models.SessionResponse) *proto.ServerMessage {
	state := session.State
	return &proto.ServerMessage{Type: messageType, State: &state, RecordID: session.RecordID}
}

func errorMessage(err error) *proto.ServerMessage {
	e := response.FromError(err)
	return &proto.ServerMessage{Type: proto.TypeError, Code: e.Code, Reason: e.Extras}
}
