package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config configures the auth module.
type Config struct {
	DBPath     string
	JWT        JWTConfig
	BcryptCost int
}

// AuthModule provides identity and session services.
type AuthModule struct {
	db      *gorm.DB
	service *AuthService
	config  Config
	logger  types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(config Config, logger types.Logger) *AuthModule {
	return &AuthModule{
		config: config,
		logger: logger.WithModule("auth"),
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start opens the database and builds the service.
func (m *AuthModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	repo := NewUserRepository(db)
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewAuthService(repo, NewPasswordHasher(m.config.BcryptCost), NewJWTManager(m.config.JWT))

	m.logger.Info("Module started", "database", m.config.DBPath, "token_ttl", m.config.JWT.TokenDuration.String())
	return nil
}

// Stop closes the database connection.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.config.DBPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSignup, json.Unmarshal, json.Marshal, m.handleSignup,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSignup, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLogin, json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLogin, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceValidateToken, json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceValidateToken, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceSignup, ServiceLogin, ServiceValidateToken, ServiceGetUser})
	return nil
}

func (m *AuthModule) handleSignup(ctx context.Context, req SignupRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Signup(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return SessionResponse{Error: m.wireError(ServiceSignup, err)}, nil
	}

	m.logger.Info("User signed up", "user_id", session.User.ID)
	return toSessionResponse(session), nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return SessionResponse{Error: m.wireError(ServiceLogin, err)}, nil
	}
	return toSessionResponse(session), nil
}

// handleValidateToken reports validation failures in the response body,
// not as a service error.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.VerifyToken(ctx, req.Token)
	if err != nil {
		return ValidateTokenResponse{
			Valid: false,
			Error: m.wireError(ServiceValidateToken, err),
		}, nil
	}

	return ValidateTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return GetUserResponse{Error: m.wireError(ServiceGetUser, err)}, nil
	}
	return GetUserResponse{User: toUserPayload(user)}, nil
}

func (m *AuthModule) wireError(service string, err error) *apperr.Error {
	wired := apperr.Wire(err)
	if wired.Kind == apperr.KindInternal {
		m.logger.Error("Service failed", "service", service, "error", err)
	}
	return wired
}

func toSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		User:  toUserPayload(s.User),
		Token: s.Token,
	}
}
