package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ctchen222/tictactoe-history/internal/api/controller"
	"ctchen222/tictactoe-history/internal/api/service"
	svcmocks "ctchen222/tictactoe-history/internal/api/service/mocks"
	"ctchen222/tictactoe-history/internal/config"
	"ctchen222/tictactoe-history/internal/play"
	repomocks "ctchen222/tictactoe-history/internal/repository/mocks"
	"ctchen222/tictactoe-history/internal/stats"
)

type fixture struct {
	engine   *gin.Engine
	tokens   *svcmocks.MockTokenManager
	games    *svcmocks.MockGameService
	attempts *repomocks.MockAttemptRepository
}

func newFixture(t *testing.T, health map[string]HealthCheck) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)

	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<h1>tic-tac-toe</h1>"), 0o644))

	cfg := &config.Config{
		HTTP:      config.HTTP{WebDir: webDir},
		RateLimit: config.RateLimit{Max: 5, Window: 15 * time.Minute},
	}
	f := &fixture{
		tokens:   svcmocks.NewMockTokenManager(ctrl),
		games:    svcmocks.NewMockGameService(ctrl),
		attempts: repomocks.NewMockAttemptRepository(ctrl),
	}
	sessions := svcmocks.NewMockSessionService(ctrl)
	f.engine = NewServer(cfg, Handlers{
		Users:    controller.NewUserController(svcmocks.NewMockUserService(ctrl), false),
		Games:    controller.NewGameController(f.games),
		Sessions: controller.NewSessionController(sessions),
		Play:     play.NewHandler(sessions),
		Tokens:   f.tokens,
		Attempts: f.attempts,
		Health:   health,
	}).Engine()
	return f
}

func (f *fixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, map[string]HealthCheck{
		"sqlite": func(context.Context) error { return nil },
	})
	w := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sqlite":"up"`)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	f = newFixture(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}

func TestGameRoutesRequireAuth(t *testing.T) {
	f := newFixture(t, nil)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/game/save"},
		{http.MethodGet, "/api/game/history"},
		{http.MethodGet, "/api/game/stats"},
		{http.MethodPost, "/api/game/sessions"},
		{http.MethodPost, "/api/game/sessions/s1/moves"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/ws/sessions/s1"},
	} {
		w := f.do(route.method, route.path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}

	f.tokens.EXPECT().Verify("bad").Return(nil, service.ErrInvalidToken)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/game/stats", "bad").Code)
}

func TestAuthorizedStats(t *testing.T) {
	f := newFixture(t, nil)
	f.tokens.EXPECT().Verify("good").Return(&service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "3"},
	}, nil)
	f.games.EXPECT().Stats(gomock.Any(), int64(3)).Return(&stats.Summary{}, nil)

	w := f.do(http.MethodGet, "/api/game/stats", "good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_games":0`)
}

func TestLoginIsRateLimited(t *testing.T) {
	f := newFixture(t, nil)
	f.attempts.EXPECT().Hit(gomock.Any(), "login:192.0.2.1", 15*time.Minute).Return(int64(6), 14*time.Minute, nil)

	w := f.do(http.MethodPost, "/api/auth/login", "")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "840", w.Header().Get("Retry-After"))
}

func TestStaticAndNotFound(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tic-tac-toe")

	w = f.do(http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}
