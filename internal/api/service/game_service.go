package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/api/repository"
	"ctchen222/tictactoe-history/internal/game"
	redisrepo "ctchen222/tictactoe-history/internal/repository"
	"ctchen222/tictactoe-history/internal/stats"
)

// Paging defaults for History.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// GameService records finished games and reads them back.
type GameService interface {
	Save(ctx context.Context, userID int64, req *models.SaveGameRequest) (int64, error)
	History(ctx context.Context, userID int64, page, limit int) (*models.HistoryResponse, error)
	Stats(ctx context.Context, userID int64) (*stats.Summary, error)
}

type gameService struct {
	games repository.GameRepository
	cache redisrepo.StatsCache

	recordsSaved metric.Int64Counter
}

// NewGameService creates a new GameService. cache may be nil, in which case
// every Stats call reads the record store.
func NewGameService(games repository.GameRepository, cache redisrepo.StatsCache) GameService {
	saved, err := otel.Meter("service.game").Int64Counter("game.records.saved",
		metric.WithDescription("Finished games written to the record store"))
	if err != nil {
		slog.Warn("Failed to create records counter", "error", err)
	}
	return &gameService{games: games, cache: cache, recordsSaved: saved}
}

// ValidateRecord checks that a client-supplied record could come from
// legal play: a consistent finished board, its true winner, a move count
// equal to the number of marks and, when given, a sequence that replays to
// the same board.
func ValidateRecord(req *models.SaveGameRequest) error {
	board := game.Board(req.Board)
	if err := game.CheckConsistency(board); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGame, err)
	}

	outcome, finished := game.Evaluate(board).Outcome()
	if !finished {
		return fmt.Errorf("%w: board is still in progress", ErrInvalidGame)
	}
	if outcome != req.Winner {
		return fmt.Errorf("%w: winner %q does not match board result %q", ErrInvalidGame, req.Winner, outcome)
	}

	x, o := game.CountMarks(board)
	if x+o != req.Moves {
		return fmt.Errorf("%w: %d moves recorded for %d marks", ErrInvalidGame, req.Moves, x+o)
	}

	if req.Sequence != nil {
		e, err := game.Replay(req.Sequence)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidGame, err)
		}
		if e.Board() != board || e.MoveCount() != req.Moves {
			return fmt.Errorf("%w: sequence does not replay to the board", ErrInvalidGame)
		}
	}
	return nil
}

func (s *gameService) Save(ctx context.Context, userID int64, req *models.SaveGameRequest) (int64, error) {
	ctx, span := tracer.Start(ctx, "GameService.Save")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	if err := ValidateRecord(req); err != nil {
		return 0, err
	}

	record := &models.GameRecord{
		UserID:    userID,
		Board:     models.BoardState(req.Board),
		Winner:    req.Winner,
		MoveCount: req.Moves,
	}
	if req.Sequence != nil {
		record.Sequence = models.MoveSequence(req.Sequence)
	}
	if req.SessionGame != "" {
		record.SessionGame = &req.SessionGame
	}

	id, err := s.games.Save(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save game")
		slog.ErrorContext(ctx, "Failed to save game", "user.id", userID, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	span.SetAttributes(attribute.Int64("record.id", id))
	if s.recordsSaved != nil {
		s.recordsSaved.Add(ctx, 1, metric.WithAttributes(attribute.String("winner", string(req.Winner))))
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to invalidate cached stats", "user.id", userID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Game saved", "user.id", userID, "record.id", id, "game.winner", req.Winner)
	return id, nil
}

// NormalizePaging applies the History defaults and caps.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func (s *gameService) History(ctx context.Context, userID int64, page, limit int) (*models.HistoryResponse, error) {
	ctx, span := tracer.Start(ctx, "GameService.History")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	page, limit = NormalizePaging(page, limit)
	records, total, err := s.games.ListByUser(ctx, userID, page, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list games")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return &models.HistoryResponse{
		Games:      records,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *gameService) Stats(ctx context.Context, userID int64) (*stats.Summary, error) {
	ctx, span := tracer.Start(ctx, "GameService.Stats")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	// gen is read before the records, so a save landing in between moves
	// the cache past the summary computed here.
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		cached, g, err := s.cache.Get(ctx, userID)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Failed to read cached stats", "user.id", userID, "error", err)
		case cached != nil:
			return cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	records, err := s.games.ListAllByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list games")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	summary, err := stats.Summarize(models.StatsRecords(records))
	if err != nil {
		if errors.Is(err, stats.ErrDataIntegrity) {
			slog.ErrorContext(ctx, "Stored game history is corrupt", "user.id", userID, "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to summarize games")
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, userID, gen, summary); err != nil {
			slog.WarnContext(ctx, "Failed to cache stats", "user.id", userID, "error", err)
		}
	}
	return &summary, nil
}
