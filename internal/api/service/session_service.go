package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/game"
	redisrepo "ctchen222/tictactoe-history/internal/repository"
)

// Hinter suggests a cell for the player to move.
type Hinter interface {
	CalculateNextMove(board game.Board, mark game.PlayerMark, difficulty string) int
}

// SessionService drives one game per session for its owner. The engine is
// rebuilt from the stored move list on every call.
type SessionService interface {
	Start(ctx context.Context, userID int64) (*models.SessionResponse, error)
	Get(ctx context.Context, userID int64, id string) (*models.SessionResponse, error)
	Move(ctx context.Context, userID int64, id string, index int, player game.PlayerMark) (*models.SessionResponse, error)
	Reset(ctx context.Context, userID int64, id string) (*models.SessionResponse, error)
	// Save records the finished game once. On failure the session is left as it was.
	Save(ctx context.Context, userID int64, id string) (*models.SessionResponse, error)
	Hint(ctx context.Context, userID int64, id string, difficulty string) (int, error)
}

type sessionService struct {
	sessions redisrepo.SessionRepository
	games    GameService
	hinter   Hinter

	movesAccepted metric.Int64Counter
	movesRejected metric.Int64Counter
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions redisrepo.SessionRepository, games GameService, hinter Hinter) SessionService {
	meter := otel.Meter("service.session")
	accepted, err := meter.Int64Counter("game.moves.accepted",
		metric.WithDescription("Moves applied to a play session"))
	if err != nil {
		slog.Warn("Failed to create accepted moves counter", "error", err)
	}
	rejected, err := meter.Int64Counter("game.moves.rejected",
		metric.WithDescription("Moves refused by the engine"))
	if err != nil {
		slog.Warn("Failed to create rejected moves counter", "error", err)
	}

	return &sessionService{
		sessions:      sessions,
		games:         games,
		hinter:        hinter,
		movesAccepted: accepted,
		movesRejected: rejected,
	}
}

func (s *sessionService) Start(ctx context.Context, userID int64) (*models.SessionResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Start")
	defer span.End()

	session := &redisrepo.Session{ID: uuid.NewString(), UserID: userID}
	if err := s.sessions.Create(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create session")
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID))
	slog.InfoContext(ctx, "Session started", "user.id", userID, "session.id", session.ID)

	return render(session)
}

func (s *sessionService) Get(ctx context.Context, userID int64, id string) (*models.SessionResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(session, userID); err != nil {
		return nil, err
	}
	return render(session)
}

func (s *sessionService) Move(ctx context.Context, userID int64, id string, index int, player game.PlayerMark) (*models.SessionResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Move")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Int("move.index", index),
		attribute.String("move.player", string(player)),
	)

	session, err := s.sessions.Update(ctx, id, func(session *redisrepo.Session) error {
		if err := checkOwner(session, userID); err != nil {
			return err
		}
		engine, err := replay(session)
		if err != nil {
			return err
		}
		if err := engine.Move(index, player); err != nil {
			return err
		}
		session.Moves = engine.Moves()
		return nil
	})
	if err != nil {
		if game.IsMoveError(err) {
			s.count(ctx, s.movesRejected)
			slog.DebugContext(ctx, "Move rejected", "session.id", id, "move.index", index, "error", err)
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to apply move")
		}
		return nil, err
	}

	s.count(ctx, s.movesAccepted)
	return render(session)
}

func (s *sessionService) Reset(ctx context.Context, userID int64, id string) (*models.SessionResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Reset")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	session, err := s.sessions.Update(ctx, id, func(session *redisrepo.Session) error {
		if err := checkOwner(session, userID); err != nil {
			return err
		}
		session.Moves = nil
		session.RecordID = 0
		session.Round++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return render(session)
}

func (s *sessionService) Save(ctx context.Context, userID int64, id string) (*models.SessionResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Save")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	session, err := s.sessions.Update(ctx, id, func(session *redisrepo.Session) error {
		if err := checkOwner(session, userID); err != nil {
			return err
		}
		if session.RecordID != 0 {
			return fmt.Errorf("%w: record %d", ErrAlreadySaved, session.RecordID)
		}
		engine, err := replay(session)
		if err != nil {
			return err
		}
		outcome, finished := engine.Result().Outcome()
		if !finished {
			return ErrGameNotFinished
		}

		// A retried transaction saves the same game key again, which the
		// record store collapses onto the first record.
		board := engine.Board()
		recordID, err := s.games.Save(ctx, userID, &models.SaveGameRequest{
			Board:       board,
			Winner:      outcome,
			Moves:       engine.MoveCount(),
			Sequence:    engine.Moves(),
			SessionGame: session.GameKey(),
		})
		if err != nil {
			return err
		}
		session.RecordID = recordID
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadySaved) && !errors.Is(err, ErrGameNotFinished) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to save session")
		}
		return nil, err
	}
	return render(session)
}

func (s *sessionService) Hint(ctx context.Context, userID int64, id string, difficulty string) (int, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Hint")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := checkOwner(session, userID); err != nil {
		return 0, err
	}
	engine, err := replay(session)
	if err != nil {
		return 0, err
	}
	if engine.IsTerminal() {
		return 0, game.ErrGameOver
	}
	return s.hinter.CalculateNextMove(engine.Board(), engine.Turn(), difficulty), nil
}

func (s *sessionService) count(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

// checkOwner hides sessions of other users behind ErrSessionNotFound.
func checkOwner(session *redisrepo.Session, userID int64) error {
	if session.UserID != userID {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}
	return nil
}

func replay(session *redisrepo.Session) (*game.Engine, error) {
	engine, err := game.Replay(session.Moves)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSession, session.ID, err)
	}
	return engine, nil
}

func render(session *redisrepo.Session) (*models.SessionResponse, error) {
	engine, err := replay(session)
	if err != nil {
		return nil, err
	}
	return &models.SessionResponse{
		ID:       session.ID,
		State:    engine.Snapshot(),
		RecordID: session.RecordID,
	}, nil
}
