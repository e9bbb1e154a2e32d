package service

import (
	"context"
	"errors"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
)

// AuthTokens is the login/refresh response payload.
type AuthTokens struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
}

type authService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	subRepo  repository.SubscriptionRepository
	logger   zerolog.Logger
}

func NewAuthService(cfg *config.Config, userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, logger zerolog.Logger) AuthService {
	return &authService{
		cfg:      cfg,
		userRepo: userRepo,
		subRepo:  subRepo,
		logger:   logger.With().Str("service", "AuthService").Logger(),
	}
}

// Register creates the user account together with its empty profile and
// the initial INACTIVE subscription row.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	existing, err := s.userRepo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      "USER",
		IsActive:  true,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.userRepo.CreateProfile(ctx, &model.Profile{UserID: user.ID}); err != nil {
		return nil, err
	}
	if err := s.subRepo.Create(ctx, uuid.NewString(), user.ID); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("User registered")

	user.Password = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !util.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(user)
}

// Refresh validates a refresh token and reissues both tokens.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := util.ValidateJWT(refreshToken, s.cfg.JWTSecret)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.issueTokens(user)
}

func (s *authService) issueTokens(user *model.User) (*AuthTokens, error) {
	access, err := util.IssueJWT(s.cfg.JWTSecret, user.ID, user.Email, user.Role, time.Duration(s.cfg.AccessTokenTTLMin)*time.Minute)
	if err != nil {
		return nil, err
	}
	refresh, err := util.IssueJWT(s.cfg.JWTSecret, user.ID, user.Email, user.Role, time.Duration(s.cfg.RefreshTokenTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return &AuthTokens{User: user, AccessToken: access, RefreshToken: refresh}, nil
}
