package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"ctchen222/tictactoe-history/internal/api/models"
	"ctchen222/tictactoe-history/internal/api/repository"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks . UserService,GameService,SessionService,TokenManager,Hinter

var tracer = otel.Tracer("service")

// UserService defines the interface for user-related business logic.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	tokens   TokenManager
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, tokens TokenManager) UserService {
	return &userService{userRepo: userRepo, tokens: tokens}
}

// Register handles user registration and signs the new user in.
func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	ctx, span := tracer.Start(ctx, "UserService.Register")
	defer span.End()

	// Check if user already exists
	byName, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	byEmail, err := s.userRepo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if byName != nil || byEmail != nil {
		return nil, ErrUserExists
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
	}
	if err := s.userRepo.CreateUser(ctx, user, req.Password); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	slog.InfoContext(ctx, "User registered", "user.id", user.ID, "user.name", user.Username)

	return s.authenticate(user)
}

// Login handles user login and returns a JWT on success.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	ctx, span := tracer.Start(ctx, "UserService.Login")
	defer span.End()

	user, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	return s.authenticate(user)
}

// Me returns the signed-in user.
func (s *userService) Me(ctx context.Context, userID int64) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Me")
	defer span.End()

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) authenticate(user *models.User) (*models.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
