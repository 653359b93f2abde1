package service_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ctchen222/tictactoe-history/internal/api/models"
	apirepo "ctchen222/tictactoe-history/internal/api/repository"
	"ctchen222/tictactoe-history/internal/api/service"
	svcmocks "ctchen222/tictactoe-history/internal/api/service/mocks"
	"ctchen222/tictactoe-history/internal/db"
	"ctchen222/tictactoe-history/internal/game"
	"ctchen222/tictactoe-history/internal/repository"
	redismocks "ctchen222/tictactoe-history/internal/repository/mocks"
)

const owner = int64(1)

type sessionFixture struct {
	svc    service.SessionService
	repo   *redismocks.MockSessionRepository
	games  *svcmocks.MockGameService
	hinter *svcmocks.MockHinter
	stored *repository.Session
}

// newSessionFixture backs the session mock with one stored session. Update
// applies fn to a copy and keeps it only when fn succeeds.
func newSessionFixture(t *testing.T, moves ...int) *sessionFixture {
	ctrl := gomock.NewController(t)
	f := &sessionFixture{
		repo:   redismocks.NewMockSessionRepository(ctrl),
		games:  svcmocks.NewMockGameService(ctrl),
		hinter: svcmocks.NewMockHinter(ctrl),
		stored: &repository.Session{ID: "s1", UserID: owner, Moves: moves},
	}
	f.svc = service.NewSessionService(f.repo, f.games, f.hinter)

	lookup := func(id string) (*repository.Session, error) {
		if id != f.stored.ID {
			return nil, repository.ErrSessionNotFound
		}
		cp := *f.stored
		cp.Moves = slices.Clone(f.stored.Moves)
		return &cp, nil
	}
	f.repo.EXPECT().FindByID(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string) (*repository.Session, error) {
			return lookup(id)
		}).AnyTimes()
	f.repo.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, fn func(*repository.Session) error) (*repository.Session, error) {
			s, err := lookup(id)
			if err != nil {
				return nil, err
			}
			if err := fn(s); err != nil {
				return nil, err
			}
			f.stored = s
			return s, nil
		}).AnyTimes()
	return f
}

func TestSessionService_Start(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := redismocks.NewMockSessionRepository(ctrl)
	svc := service.NewSessionService(repo, svcmocks.NewMockGameService(ctrl), svcmocks.NewMockHinter(ctrl))

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *repository.Session) error {
			assert.Equal(t, owner, s.UserID)
			assert.NotEmpty(t, s.ID)
			assert.Empty(t, s.Moves)
			return nil
		})

	resp, err := svc.Start(context.Background(), owner)

	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, game.PlayerX, resp.State.Turn)
	assert.Equal(t, game.StatusInProgress, resp.State.Result.Status)
}

func TestSessionService_MoveToWin(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	var resp *models.SessionResponse
	for _, m := range []struct {
		index  int
		player game.PlayerMark
	}{{0, X}, {1, O}, {4, X}, {2, O}, {8, X}} {
		var err error
		resp, err = f.svc.Move(ctx, owner, "s1", m.index, m.player)
		require.NoError(t, err)
	}

	assert.Equal(t, game.Result{Status: game.StatusWon, Winner: X}, resp.State.Result)
	assert.Equal(t, 5, resp.State.MoveCount)
	assert.Equal(t, []int{0, 1, 4, 2, 8}, f.stored.Moves)
}

func TestSessionService_RejectedMoveLeavesSessionUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		player  game.PlayerMark
		wantErr error
	}{
		{name: "Occupied", index: 4, player: O, wantErr: game.ErrCellOccupied},
		{name: "Wrong turn", index: 0, player: X, wantErr: game.ErrWrongTurn},
		{name: "Out of range", index: 9, player: O, wantErr: game.ErrOutOfRange},
		{name: "Invalid mark", index: 0, player: "Q", wantErr: game.ErrInvalidMark},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, 4)

			_, err := f.svc.Move(context.Background(), owner, "s1", tt.index, tt.player)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, []int{4}, f.stored.Moves)
		})
	}
}

func TestSessionService_GameOverUntilReset(t *testing.T) {
	f := newSessionFixture(t, 0, 3, 1, 4, 2)
	ctx := context.Background()

	_, err := f.svc.Move(ctx, owner, "s1", 5, O)
	require.ErrorIs(t, err, game.ErrGameOver)

	resp, err := f.svc.Reset(ctx, owner, "s1")
	require.NoError(t, err)
	assert.Equal(t, game.Board{}, resp.State.Board)
	assert.Equal(t, game.PlayerX, resp.State.Turn)
	assert.Empty(t, f.stored.Moves)

	_, err = f.svc.Move(ctx, owner, "s1", 4, X)
	assert.NoError(t, err)
}

func TestSessionService_OtherUsersSessionIsNotFound(t *testing.T) {
	f := newSessionFixture(t, 4)
	ctx := context.Background()
	stranger := owner + 1

	_, err := f.svc.Get(ctx, stranger, "s1")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = f.svc.Move(ctx, stranger, "s1", 0, O)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = f.svc.Reset(ctx, stranger, "s1")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = f.svc.Save(ctx, stranger, "s1")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = f.svc.Hint(ctx, stranger, "s1", "hard")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	assert.Equal(t, []int{4}, f.stored.Moves)
}

func TestSessionService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("Finished game is saved once", func(t *testing.T) {
		f := newSessionFixture(t, 0, 1, 4, 2, 8)
		f.games.EXPECT().Save(gomock.Any(), owner, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, req *models.SaveGameRequest) (int64, error) {
				assert.Equal(t, game.OutcomeX, req.Winner)
				assert.Equal(t, 5, req.Moves)
				assert.Equal(t, []int{0, 1, 4, 2, 8}, req.Sequence)
				assert.Equal(t, "s1:0", req.SessionGame)
				require.NoError(t, service.ValidateRecord(req))
				return 77, nil
			}).Times(1)

		resp, err := f.svc.Save(ctx, owner, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(77), resp.RecordID)

		_, err = f.svc.Save(ctx, owner, "s1")
		assert.ErrorIs(t, err, service.ErrAlreadySaved)
	})

	t.Run("Unfinished game", func(t *testing.T) {
		f := newSessionFixture(t, 0, 1)

		_, err := f.svc.Save(ctx, owner, "s1")

		assert.ErrorIs(t, err, service.ErrGameNotFinished)
	})

	t.Run("Store failure leaves the session unsaved", func(t *testing.T) {
		f := newSessionFixture(t, 0, 1, 4, 2, 8)
		storeErr := errors.Join(service.ErrPersistence, errors.New("database is locked"))
		f.games.EXPECT().Save(gomock.Any(), owner, gomock.Any()).Return(int64(0), storeErr).Times(1)

		_, err := f.svc.Save(ctx, owner, "s1")

		require.ErrorIs(t, err, service.ErrPersistence)
		assert.Zero(t, f.stored.RecordID)
		assert.Equal(t, []int{0, 1, 4, 2, 8}, f.stored.Moves)
	})

	t.Run("Reset allows saving the next game", func(t *testing.T) {
		f := newSessionFixture(t, 0, 1, 4, 2, 8)
		f.stored.RecordID = 5

		_, err := f.svc.Reset(ctx, owner, "s1")
		require.NoError(t, err)
		assert.Zero(t, f.stored.RecordID)
		assert.Equal(t, 1, f.stored.Round)

		// the next game in the session finishes the same way
		f.stored.Moves = []int{0, 1, 4, 2, 8}
		f.games.EXPECT().Save(gomock.Any(), owner, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, req *models.SaveGameRequest) (int64, error) {
				assert.Equal(t, "s1:1", req.SessionGame)
				return 78, nil
			})

		resp, err := f.svc.Save(ctx, owner, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(78), resp.RecordID)
	})
}

func TestSessionService_SaveRetriedAfterConflictKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	pool, err := db.OpenAndMigrate(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	user := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, apirepo.NewUserRepository(pool).CreateUser(ctx, user, "Secr3t!pw"))
	records := apirepo.NewGameRepository(pool)

	ctrl := gomock.NewController(t)
	sessions := redismocks.NewMockSessionRepository(ctrl)
	stored := &repository.Session{ID: "s1", UserID: user.ID, Moves: []int{0, 1, 4, 2, 8}}
	svc := service.NewSessionService(sessions, service.NewGameService(records, nil), svcmocks.NewMockHinter(ctrl))

	// the first attempt writes the record, then loses the session to another writer
	attempt := 0
	sessions.EXPECT().Update(gomock.Any(), "s1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, fn func(*repository.Session) error) (*repository.Session, error) {
			attempt++
			cp := *stored
			cp.Moves = slices.Clone(stored.Moves)
			if err := fn(&cp); err != nil {
				return nil, err
			}
			if attempt == 1 {
				return nil, fmt.Errorf("%w: %s", repository.ErrConcurrentUpdate, id)
			}
			stored = &cp
			return &cp, nil
		}).Times(2)

	_, err = svc.Save(ctx, user.ID, "s1")
	require.ErrorIs(t, err, service.ErrConcurrentUpdate)

	resp, err := svc.Save(ctx, user.ID, "s1")
	require.NoError(t, err)

	all, err := records.ListAllByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, all[0].ID, resp.RecordID)
	assert.Equal(t, all[0].ID, stored.RecordID)
}

func TestSessionService_Hint(t *testing.T) {
	ctx := context.Background()

	t.Run("Asks for the player to move", func(t *testing.T) {
		f := newSessionFixture(t, 4)
		f.hinter.EXPECT().
			CalculateNextMove(game.Board{4: X}, O, "medium").
			Return(0)

		cell, err := f.svc.Hint(ctx, owner, "s1", "medium")

		require.NoError(t, err)
		assert.Equal(t, 0, cell)
	})

	t.Run("No hint after the game ended", func(t *testing.T) {
		f := newSessionFixture(t, 0, 1, 4, 2, 8)

		_, err := f.svc.Hint(ctx, owner, "s1", "hard")

		assert.ErrorIs(t, err, game.ErrGameOver)
	})
}

func TestSessionService_CorruptSession(t *testing.T) {
	f := newSessionFixture(t, 4, 4)

	_, err := f.svc.Get(context.Background(), owner, "s1")

	require.ErrorIs(t, err, service.ErrCorruptSession)
	assert.False(t, game.IsMoveError(err))
}

func TestSessionService_UnknownSession(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.Get(context.Background(), owner, "nope")

	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}
