package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/user"
	"github.com/google/uuid"
)

// Client-facing messages.
const (
	MsgMissingSignupFields = "Please provide name, email, and password"
	MsgMissingLoginFields  = "Please provide email and password"
	MsgInvalidEmail        = "Please provide a valid email"
	MsgNameTooLong         = "Name cannot be more than 50 characters"
	MsgPasswordTooShort    = "Password must be at least 6 characters"
	MsgPasswordTooLong     = "Password must be at most 72 characters"
	MsgUserExists          = "User already exists with this email"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgTokenFailed         = "Not authorized, token failed"
	MsgTokenExpired        = "Not authorized, token expired"
	MsgUserNotFound        = "User not found"
)

// MaxNameLength is the longest accepted display name.
const MaxNameLength = 50

// AuthService handles signup, login and token verification.
type AuthService struct {
	repo   *UserRepository
	hasher *PasswordHasher
	jwt    *JWTManager
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
		now:    time.Now,
	}
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a new account and returns it with a session token.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, apperr.Validation(MsgMissingSignupFields)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperr.Validation(MsgNameTooLong)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Validation(MsgInvalidEmail)
	}
	if len(password) < MinPasswordLength {
		return nil, apperr.Validation(MsgPasswordTooShort)
	}
	if len(password) > MaxPasswordLength {
		return nil, apperr.Validation(MsgPasswordTooLong)
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, apperr.Conflict(MsgUserExists)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same email.
		if errors.Is(err, ErrUserExists) {
			return nil, apperr.Conflict(MsgUserExists)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.newSession(user)
}

// Login authenticates a user and returns a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation(MsgMissingLoginFields)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Unauthorized(MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}

	return s.newSession(user)
}

// VerifyToken validates a session token and confirms its user still exists.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.VerifyToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, apperr.Unauthorized(MsgTokenExpired)
		}
		return nil, apperr.Unauthorized(MsgTokenFailed)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Unauthorized(MsgUserNotFound)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &domain.Claims{
		UserID: user.ID,
		Email:  user.Email,
	}, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.NotFound(MsgUserNotFound)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) newSession(user *domain.User) (*domain.Session, error) {
	token, err := s.jwt.IssueToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &domain.Session{User: user, Token: token}, nil
}
