package auth

import (
	"time"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/user"
)

// Service names exposed by the auth module.
const (
	ServiceSignup        = "signup"
	ServiceLogin         = "login"
	ServiceValidateToken = "validate-token"
	ServiceGetUser       = "get-user"
)

// SignupRequest represents a signup request.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserPayload is the public view of a user.
type UserPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionResponse is returned by signup and login.
type SessionResponse struct {
	User  UserPayload   `json:"user"`
	Token string        `json:"token,omitempty"`
	Error *apperr.Error `json:"error,omitempty"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid  bool          `json:"valid"`
	UserID string        `json:"user_id,omitempty"`
	Email  string        `json:"email,omitempty"`
	Error  *apperr.Error `json:"error,omitempty"`
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse represents a get user response.
type GetUserResponse struct {
	User  UserPayload   `json:"user"`
	Error *apperr.Error `json:"error,omitempty"`
}

func toUserPayload(u *domain.User) UserPayload {
	return UserPayload{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func (p UserPayload) toDomain() *domain.User {
	return &domain.User{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
	}
}
