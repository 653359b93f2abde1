package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ctchen222/tictactoe-history/internal/api/controller"
	apirepository "ctchen222/tictactoe-history/internal/api/repository"
	"ctchen222/tictactoe-history/internal/api/service"
	"ctchen222/tictactoe-history/internal/bot"
	"ctchen222/tictactoe-history/internal/config"
	"ctchen222/tictactoe-history/internal/db"
	"ctchen222/tictactoe-history/internal/logger"
	"ctchen222/tictactoe-history/internal/play"
	"ctchen222/tictactoe-history/internal/repository"
	"ctchen222/tictactoe-history/internal/server"
	"ctchen222/tictactoe-history/internal/telemetry"
	"ctchen222/tictactoe-history/internal/validator"
)

const (
	statsCacheTTL   = 10 * time.Minute
	shutdownTimeout = 5 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()

	logger.Init(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)
	if err := validator.RegisterGinValidations(); err != nil {
		return err
	}

	// Initialize Redis
	rdb, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer rdb.Close()

	// Initialize SQLite DB
	sqlDB, err := db.OpenAndMigrate(ctx, cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite db: %w", err)
	}
	defer sqlDB.Close()

	// Create repositories
	userRepo := apirepository.NewUserRepository(sqlDB)
	gameRepo := apirepository.NewGameRepository(sqlDB)
	sessionRepo := repository.NewSessionRepository(rdb, cfg.Session.TTL)
	statsCache := repository.NewStatsCache(rdb, statsCacheTTL)
	attemptRepo := repository.NewAttemptRepository(rdb)

	// Create services
	tokens := service.NewTokenManager([]byte(cfg.JWT.Secret), cfg.JWT.TTL)
	userService := service.NewUserService(userRepo, tokens)
	gameService := service.NewGameService(gameRepo, statsCache)
	sessionService := service.NewSessionService(sessionRepo, gameService, &bot.MoveCalculator{})

	srv := server.NewServer(cfg, server.Handlers{
		Users:    controller.NewUserController(userService, cfg.HTTP.TLSEnabled()),
		Games:    controller.NewGameController(gameService),
		Sessions: controller.NewSessionController(sessionService),
		Play:     play.NewHandler(sessionService),
		Tokens:   tokens,
		Attempts: attemptRepo,
		Health: map[string]server.HealthCheck{
			"sqlite": sqlDB.PingContext,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server started", "http.addr", cfg.HTTP.Addr, "http.tls", cfg.HTTP.TLSEnabled())
		var err error
		if cfg.HTTP.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.HTTP.TLSCert, cfg.HTTP.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Server exiting")
	return nil
}
