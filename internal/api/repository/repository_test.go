package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/db"
	"ctchen222/tictactoe-history/internal/game"
	"ctchen222/tictactoe-history/internal/stats"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	pool, err := db.OpenAndMigrate(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func createUser(t *testing.T, repo UserRepository, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, repo.CreateUser(context.Background(), user, "Secr3t!pw"))
	return user
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	t.Run("Create and look up", func(t *testing.T) {
		user := createUser(t, repo, "alice")
		assert.NotZero(t, user.ID)
		assert.NotEqual(t, "Secr3t!pw", user.PasswordHash)

		byName, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, user.ID, byName.ID)
		assert.Equal(t, "alice@example.com", byName.Email)

		byID, err := repo.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "alice", byID.Username)

		byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, user.ID, byEmail.ID)
	})

	t.Run("Missing user", func(t *testing.T) {
		user, err := repo.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("Duplicate username", func(t *testing.T) {
		createUser(t, repo, "bob")
		err := repo.CreateUser(ctx, &models.User{Username: "bob", Email: "other@example.com"}, "Secr3t!pw")
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		createUser(t, repo, "carol")
		err := repo.CreateUser(ctx, &models.User{Username: "carol2", Email: "carol@example.com"}, "Secr3t!pw")
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})
}

func record(userID int64, winner game.Outcome, moves int, at time.Time) *models.GameRecord {
	return &models.GameRecord{
		UserID:    userID,
		Board:     models.BoardState{game.PlayerX, game.PlayerO},
		Winner:    winner,
		MoveCount: moves,
		CreatedAt: at,
	}
}

func TestGameRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()
	pool := newTestDB(t)
	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for i, winner := range []game.Outcome{game.OutcomeX, game.OutcomeO, game.OutcomeDraw, game.OutcomeX, game.OutcomeX} {
		id, err := games.Save(ctx, record(alice.ID, winner, 5+i, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := games.Save(ctx, record(bob.ID, game.OutcomeO, 6, base))
	require.NoError(t, err)

	t.Run("First page is most recent first", func(t *testing.T) {
		page, total, err := games.ListByUser(ctx, alice.ID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, page, 2)
		assert.Equal(t, ids[4], page[0].ID)
		assert.Equal(t, ids[3], page[1].ID)
		assert.Equal(t, game.PlayerX, page[0].Board[0])
		assert.True(t, page[0].CreatedAt.Equal(base.Add(4*time.Minute)))
	})

	t.Run("Last partial page", func(t *testing.T) {
		page, total, err := games.ListByUser(ctx, alice.ID, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, page, 1)
		assert.Equal(t, ids[0], page[0].ID)
	})

	t.Run("Page past the end is empty", func(t *testing.T) {
		page, total, err := games.ListByUser(ctx, alice.ID, 9, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Empty(t, page)
	})

	t.Run("Invalid paging", func(t *testing.T) {
		_, _, err := games.ListByUser(ctx, alice.ID, 0, 10)
		assert.Error(t, err)
	})

	t.Run("Only the user's own records", func(t *testing.T) {
		all, err := games.ListAllByUser(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, game.OutcomeO, all[0].Winner)
	})
}

func TestGameRepository_SameTimestampOrdersByID(t *testing.T) {
	ctx := context.Background()
	pool := newTestDB(t)
	alice := createUser(t, NewUserRepository(pool), "alice")
	games := NewGameRepository(pool)
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first, err := games.Save(ctx, record(alice.ID, game.OutcomeX, 5, at))
	require.NoError(t, err)
	second, err := games.Save(ctx, record(alice.ID, game.OutcomeO, 6, at))
	require.NoError(t, err)

	page, _, err := games.ListByUser(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, second, page[0].ID)
	assert.Equal(t, first, page[1].ID)
}

func TestGameRepository_Sequence(t *testing.T) {
	ctx := context.Background()
	pool := newTestDB(t)
	alice := createUser(t, NewUserRepository(pool), "alice")
	games := NewGameRepository(pool)

	withSeq := record(alice.ID, game.OutcomeX, 5, time.Time{})
	withSeq.Sequence = models.MoveSequence{0, 1, 4, 2, 8}
	_, err := games.Save(ctx, withSeq)
	require.NoError(t, err)
	_, err = games.Save(ctx, record(alice.ID, game.OutcomeDraw, 9, time.Time{}))
	require.NoError(t, err)

	all, err := games.ListAllByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	bySeq := map[bool]models.GameRecord{}
	for _, r := range all {
		bySeq[r.Sequence != nil] = r
	}
	assert.Equal(t, models.MoveSequence{0, 1, 4, 2, 8}, bySeq[true].Sequence)
	assert.Equal(t, game.OutcomeDraw, bySeq[false].Winner)

	replayed, err := game.Replay(bySeq[true].Sequence)
	require.NoError(t, err)
	outcome, ok := replayed.Result().Outcome()
	require.True(t, ok)
	assert.Equal(t, bySeq[true].Winner, outcome)
	assert.Equal(t, bySeq[true].MoveCount, replayed.MoveCount())
}

func TestGameRepository_StatsRawMatchesSummarize(t *testing.T) {
	ctx := context.Background()
	pool := newTestDB(t)
	alice := createUser(t, NewUserRepository(pool), "alice")
	games := NewGameRepository(pool)

	empty, err := games.StatsRaw(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.Summary{}, empty)

	for _, r := range []struct {
		winner game.Outcome
		moves  int
	}{{game.OutcomeX, 5}, {game.OutcomeO, 7}, {game.OutcomeDraw, 9}} {
		_, err := games.Save(ctx, record(alice.ID, r.winner, r.moves, time.Time{}))
		require.NoError(t, err)
	}

	raw, err := games.StatsRaw(ctx, alice.ID)
	require.NoError(t, err)
	all, err := games.ListAllByUser(ctx, alice.ID)
	require.NoError(t, err)
	folded, err := stats.Summarize(models.StatsRecords(all))
	require.NoError(t, err)

	assert.Equal(t, folded, raw)
	assert.InDelta(t, 7.0, raw.AverageMoves, 1e-9)
}

func TestGameRepository_StatsRawDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	pool := newTestDB(t)
	alice := createUser(t, NewUserRepository(pool), "alice")
	games := NewGameRepository(pool)

	_, err := games.Save(ctx, record(alice.ID, "Y", 5, time.Time{}))
	require.NoError(t, err)

	_, err = games.StatsRaw(ctx, alice.ID)
	assert.ErrorIs(t, err, stats.ErrDataIntegrity)
}

func TestGameRepository_SaveOncePerSessionGame(t *testing.T) {
	ctx := context.Background()
	pool := newTestDB(t)
	users := NewUserRepository(pool)
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	games := NewGameRepository(pool)

	fromSession := func(userID int64, key string, winner game.Outcome) *models.GameRecord {
		r := record(userID, winner, 5, time.Time{})
		r.SessionGame = &key
		return r
	}

	first, err := games.Save(ctx, fromSession(alice.ID, "s1:0", game.OutcomeX))
	require.NoError(t, err)

	retried := fromSession(alice.ID, "s1:0", game.OutcomeX)
	again, err := games.Save(ctx, retried)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, first, retried.ID)

	next, err := games.Save(ctx, fromSession(alice.ID, "s1:1", game.OutcomeO))
	require.NoError(t, err)
	assert.NotEqual(t, first, next)

	_, err = games.Save(ctx, fromSession(bob.ID, "s1:0", game.OutcomeX))
	require.NoError(t, err)

	// records saved outside sessions never collide
	for range 2 {
		_, err := games.Save(ctx, record(alice.ID, game.OutcomeDraw, 9, time.Time{}))
		require.NoError(t, err)
	}

	all, err := games.ListAllByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for _, r := range all {
		if r.ID == first {
			require.NotNil(t, r.SessionGame)
			assert.Equal(t, "s1:0", *r.SessionGame)
		}
	}

	bobs, err := games.ListAllByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, bobs, 1)
}
