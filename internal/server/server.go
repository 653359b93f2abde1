package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"ctchen222/tictactoe-history/internal/api/controller"
	"ctchen222/tictactoe-history/internal/api/middleware"
	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/api/service"
	"ctchen222/tictactoe-history/internal/config"
	"ctchen222/tictactoe-history/internal/play"
	"ctchen222/tictactoe-history/internal/repository"
)

var tracer = otel.Tracer("server")

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

// Handlers groups everything the route table dispatches to.
type Handlers struct {
	Users    *controller.UserController
	Games    *controller.GameController
	Sessions *controller.SessionController
	Play     *play.Handler
	Tokens   service.TokenManager
	Attempts repository.AttemptRepository
	Health   map[string]HealthCheck
}

type Server struct {
	engine *gin.Engine
}

func NewServer(cfg *config.Config, h Handlers) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.SecurityHeaders(cfg.HTTP.TLSEnabled()))

	r.GET("/healthz", health(h.Health))

	auth := middleware.Auth(h.Tokens)
	limit := func(scope string) gin.HandlerFunc {
		return middleware.RateLimit(h.Attempts, scope, cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", limit("register"), h.Users.Register)
		authGroup.POST("/login", limit("login"), h.Users.Login)
		authGroup.POST("/logout", auth, h.Users.Logout)
		authGroup.GET("/me", auth, h.Users.Me)
	}

	gameGroup := r.Group("/api/game", auth)
	{
		gameGroup.POST("/save", h.Games.Save)
		gameGroup.GET("/history", h.Games.History)
		gameGroup.GET("/stats", h.Games.Stats)

		gameGroup.POST("/sessions", h.Sessions.Start)
		gameGroup.GET("/sessions/:id", h.Sessions.Get)
		gameGroup.POST("/sessions/:id/moves", h.Sessions.Move)
		gameGroup.POST("/sessions/:id/reset", h.Sessions.Reset)
		gameGroup.POST("/sessions/:id/save", h.Sessions.Save)
		gameGroup.GET("/sessions/:id/hint", h.Sessions.Hint)
	}

	r.GET("/ws/sessions/:id", auth, h.Play.Stream)

	files := http.FileServer(http.Dir(cfg.HTTP.WebDir))
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/ws/") || c.Request.Method != http.MethodGet {
			response.ErrorResponse(c, http.StatusNotFound, "not found")
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})

	return &Server{engine: r}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "server.health")
		defer span.End()
		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.WarnContext(ctx, "Health check failed", "check", name, "error", err)
				span.RecordError(err)
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}

		if !healthy {
			span.SetStatus(codes.Error, "Unhealthy")
			c.JSON(http.StatusServiceUnavailable, response.NewResponse(false, http.StatusServiceUnavailable, status))
			return
		}
		response.SuccessResponse(c, status)
	}
}
