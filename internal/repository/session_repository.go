package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks . SessionRepository,StatsCache,AttemptRepository

var tracer = otel.Tracer("repository.redis")

// Hash fields of a session key.
const (
	FieldUserID   = "user_id"
	FieldMoves    = "moves"
	FieldRecordID = "record_id"
	FieldRound    = "round"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrConcurrentUpdate is returned when a session changed between read and write.
	ErrConcurrentUpdate = errors.New("session was modified concurrently")
)

// Session is the stored form of a play session. The board is never stored;
// it is rebuilt by replaying Moves.
type Session struct {
	ID       string
	UserID   int64
	Moves    []int
	RecordID int64

	// Round counts the games started in the session. Reset begins a new one.
	Round int
}

// GameKey names the session's current game. It is the same for every save
// attempt of one game and differs after a reset.
func (s *Session) GameKey() string {
	return fmt.Sprintf("%s:%d", s.ID, s.Round)
}

// SessionRepository defines the interface for play session storage.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	// Update reads the session, applies fn and writes the result back in one
	// optimistic transaction. If fn returns an error nothing is written.
	Update(ctx context.Context, id string, fn func(s *Session) error) (*Session, error)
}

type redisSessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionRepository creates a new Redis-based SessionRepository. Every
// write refreshes the key's expiry to ttl.
func NewSessionRepository(rdb *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Create stores a new session.
func (r *redisSessionRepository) Create(ctx context.Context, s *Session) error {
	ctx, span := tracer.Start(ctx, "SessionRepository.Create")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.ID))

	fields, err := encodeSession(s)
	if err != nil {
		return err
	}

	key := sessionKey(s.ID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create session")
		return fmt.Errorf("failed to create session in redis: %w", err)
	}
	return nil
}

// FindByID retrieves a session from Redis.
func (r *redisSessionRepository) FindByID(ctx context.Context, id string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "SessionRepository.FindByID")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	data, err := r.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get session")
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	return decodeSession(id, data)
}

// Update applies fn to the stored session under WATCH.
func (r *redisSessionRepository) Update(ctx context.Context, id string, fn func(s *Session) error) (*Session, error) {
	ctx, span := tracer.Start(ctx, "SessionRepository.Update")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	key := sessionKey(id)
	var updated *Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to get session from redis: %w", err)
		}
		s, err := decodeSession(id, data)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}

		fields, err := encodeSession(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = s
		return nil
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			err = fmt.Errorf("%w: %s", ErrConcurrentUpdate, id)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update session")
		return nil, err
	}
	return updated, nil
}

func encodeSession(s *Session) (map[string]any, error) {
	moves := s.Moves
	if moves == nil {
		moves = []int{}
	}
	movesJSON, err := json.Marshal(moves)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal moves: %w", err)
	}
	return map[string]any{
		FieldUserID:   s.UserID,
		FieldMoves:    string(movesJSON),
		FieldRecordID: s.RecordID,
		FieldRound:    s.Round,
	}, nil
}

func decodeSession(id string, data map[string]string) (*Session, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	userID, err := strconv.ParseInt(data[FieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session user id: %w", err)
	}
	recordID, err := strconv.ParseInt(data[FieldRecordID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session record id: %w", err)
	}
	var moves []int
	if err := json.Unmarshal([]byte(data[FieldMoves]), &moves); err != nil {
		return nil, fmt.Errorf("failed to unmarshal moves: %w", err)
	}
	// sessions written before rounds were counted have none
	var round int
	if raw, ok := data[FieldRound]; ok {
		if round, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("failed to parse session round: %w", err)
		}
	}

	return &Session{
		ID:       id,
		UserID:   userID,
		Moves:    moves,
		RecordID: recordID,
		Round:    round,
	}, nil
}
