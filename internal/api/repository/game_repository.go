package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/stats"
)

// GameRepository stores finished games. Records are insert-only.
type GameRepository interface {
	Save(ctx context.Context, record *models.GameRecord) (int64, error)
	// ListByUser returns one page of records, most recent first, and the
	// total number of records the user has. Pages start at 1.
	ListByUser(ctx context.Context, userID int64, page, limit int) ([]models.GameRecord, int, error)
	ListAllByUser(ctx context.Context, userID int64) ([]models.GameRecord, error)
	// StatsRaw computes the summary in SQL.
	StatsRaw(ctx context.Context, userID int64) (stats.Summary, error)
}

type sqliteGameRepository struct {
	db *sqlx.DB
}

// NewGameRepository creates a new SQLite-based GameRepository.
func NewGameRepository(db *sqlx.DB) GameRepository {
	return &sqliteGameRepository{db: db}
}

const gameColumns = `id, user_id, board_state, winner, moves, sequence, session_game, created_at`

// Save inserts record and returns its id. A zero CreatedAt is set to now.
// Saving a SessionGame the user already has a record for writes nothing;
// record is filled from the stored row and its id returned.
func (r *sqliteGameRepository) Save(ctx context.Context, record *models.GameRecord) (int64, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.Save")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", record.UserID))

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO games (user_id, board_state, winner, moves, sequence, session_game, created_at)
		VALUES (:user_id, :board_state, :winner, :moves, :sequence, :session_game, :created_at)
		ON CONFLICT (user_id, session_game) WHERE session_game IS NOT NULL DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save game")
		return 0, fmt.Errorf("failed to save game: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read saved game count: %w", err)
	}
	if inserted == 0 && record.SessionGame != nil {
		var existing models.GameRecord
		query := `SELECT ` + gameColumns + ` FROM games WHERE user_id = ? AND session_game = ?`
		if err := r.db.GetContext(ctx, &existing, query, record.UserID, *record.SessionGame); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load saved game")
			return 0, fmt.Errorf("failed to load saved game: %w", err)
		}
		span.SetAttributes(attribute.Bool("game.duplicate", true))
		*record = existing
		return existing.ID, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new game id: %w", err)
	}
	record.ID = id
	return id, nil
}

func (r *sqliteGameRepository) ListByUser(ctx context.Context, userID int64, page, limit int) ([]models.GameRecord, int, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.ListByUser")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("page", page),
		attribute.Int("limit", limit),
	)

	if page < 1 || limit < 1 {
		return nil, 0, fmt.Errorf("invalid page %d or limit %d", page, limit)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM games WHERE user_id = ?`, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count games")
		return nil, 0, fmt.Errorf("failed to count games: %w", err)
	}

	records := []models.GameRecord{}
	query := `SELECT ` + gameColumns + ` FROM games WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &records, query, userID, limit, (page-1)*limit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list games")
		return nil, 0, fmt.Errorf("failed to list games: %w", err)
	}
	return records, total, nil
}

func (r *sqliteGameRepository) ListAllByUser(ctx context.Context, userID int64) ([]models.GameRecord, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.ListAllByUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	records := []models.GameRecord{}
	query := `SELECT ` + gameColumns + ` FROM games WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list games")
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return records, nil
}

type statsRow struct {
	Total        int     `db:"total"`
	XWins        int     `db:"x_wins"`
	OWins        int     `db:"o_wins"`
	Draws        int     `db:"draws"`
	AverageMoves float64 `db:"average_moves"`
	Invalid      int     `db:"invalid"`
}

// StatsRaw fails with stats.ErrDataIntegrity when any record has an
// unknown winner, like stats.Summarize.
func (r *sqliteGameRepository) StatsRaw(ctx context.Context, userID int64) (stats.Summary, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.StatsRaw")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	query := `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN winner = 'X' THEN 1 ELSE 0 END), 0) AS x_wins,
		COALESCE(SUM(CASE WHEN winner = 'O' THEN 1 ELSE 0 END), 0) AS o_wins,
		COALESCE(SUM(CASE WHEN winner = 'Draw' THEN 1 ELSE 0 END), 0) AS draws,
		COALESCE(AVG(CAST(moves AS REAL)), 0.0) AS average_moves,
		COALESCE(SUM(CASE WHEN winner NOT IN ('X', 'O', 'Draw') THEN 1 ELSE 0 END), 0) AS invalid
		FROM games WHERE user_id = ?`

	var row statsRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to aggregate games")
		return stats.Summary{}, fmt.Errorf("failed to aggregate games: %w", err)
	}
	if row.Invalid > 0 {
		return stats.Summary{}, fmt.Errorf("%w: %d records of user %d have an unknown winner", stats.ErrDataIntegrity, row.Invalid, userID)
	}

	return stats.Summary{
		TotalGames:   row.Total,
		XWins:        row.XWins,
		OWins:        row.OWins,
		Draws:        row.Draws,
		AverageMoves: row.AverageMoves,
	}, nil
}
