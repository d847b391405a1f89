package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort is the port other modules use to reach auth functionality.
type AuthPort interface {
	Signup(ctx context.Context, name, email, password string) (*domain.Session, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Signup registers a new account.
func (a *AuthAdapter) Signup(ctx context.Context, name, email, password string) (*domain.Session, error) {
	req := SignupRequest{Name: name, Email: email, Password: password}
	var resp SessionResponse

	if err := callService(ctx, a.container, ServiceSignup, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	return &domain.Session{User: resp.User.toDomain(), Token: resp.Token}, nil
}

// Login authenticates with email and password.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp SessionResponse

	if err := callService(ctx, a.container, ServiceLogin, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	return &domain.Session{User: resp.User.toDomain(), Token: resp.Token}, nil
}

// ValidateToken validates a session token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse

	if err := callService(ctx, a.container, ServiceValidateToken, &req, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid {
		if resp.Error != nil {
			return nil, resp.Error
		}
		return nil, apperr.Unauthorized(MsgTokenFailed)
	}

	return &domain.Claims{
		UserID: resp.UserID,
		Email:  resp.Email,
	}, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse

	if err := callService(ctx, a.container, ServiceGetUser, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.User.toDomain(), nil
}

func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return apperr.Internal(fmt.Errorf("%s request failed: %w", service, err))
	}
	return nil
}
