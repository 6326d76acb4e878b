package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// AuthService handles registration, login and token verification
type AuthService struct {
	users  UserStore
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: util.GetLogger(),
	}
}

// RegisterRequest represents a sign-up request
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6,max=72"`
	FullName string  `json:"full_name" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
}

// LoginRequest represents a sign-in request
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register creates a user and issues a token for it
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validateStruct(req); err != nil {
		util.AuthEventsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, apperr.Internal("failed to check email", err)
	}
	if exists {
		util.AuthEventsTotal.WithLabelValues("register", "conflict").Inc()
		return nil, apperr.Conflict("email is already registered")
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		util.AuthEventsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, apperr.Validation("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Phone:        nonEmpty(req.Phone),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			util.AuthEventsTotal.WithLabelValues("register", "conflict").Inc()
			return nil, apperr.Conflict("email is already registered")
		}
		util.RecordError(span, err)
		return nil, apperr.Internal("failed to create user", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}

	util.AuthEventsTotal.WithLabelValues("register", "success").Inc()
	s.logger.Info("User registered", zap.Int64("user_id", user.ID))

	return &AuthResponse{User: user, Token: token}, nil
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	invalid := apperr.Unauthorized("invalid email or password")

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		util.AuthEventsTotal.WithLabelValues("login", "rejected").Inc()
		return nil, invalid
	}
	if err != nil {
		return nil, apperr.Internal("failed to look up user", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		util.AuthEventsTotal.WithLabelValues("login", "rejected").Inc()
		return nil, invalid
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}

	util.AuthEventsTotal.WithLabelValues("login", "success").Inc()
	return &AuthResponse{User: user, Token: token}, nil
}

// Authenticate verifies a bearer token.
func (s *AuthService) Authenticate(token string) (*auth.Identity, error) {
	id, err := s.tokens.Verify(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return nil, apperr.Unauthorized("token has expired, please log in again")
	}
	if err != nil {
		return nil, apperr.Unauthorized("invalid token")
	}
	return id, nil
}

// GetMe returns the caller's profile
func (s *AuthService) GetMe(ctx context.Context, userID int64) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.GetMe")
	defer span.End()

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("failed to load user %d", userID), err)
	}
	return user, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
