package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/login-api/internal/auth"
	"github.com/spec-kit/login-api/internal/domain"
	"github.com/spec-kit/login-api/internal/events"
	"github.com/spec-kit/login-api/internal/repository"
	apperrors "github.com/spec-kit/login-api/pkg/util"
)

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subject string, authorities []string) (string, time.Time, error)
}

// AttemptLimiter throttles login attempts.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Name     string
	LoginID  string
	Password string
	Email    string
	Age      int
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	limiter    AttemptLimiter
	events     events.Dispatcher
	logger     *zap.Logger
	bcryptCost int

	compare   func(hashed, plain string) error
	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     TokenIssuer
	Limiter    AttemptLimiter
	Events     events.Dispatcher
	Logger     *zap.Logger
	BcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		limiter:    deps.Limiter,
		events:     deps.Events,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
		compare:    auth.ComparePassword,
	}
}

// Register creates a new account holding the default authority.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.LoginID = strings.TrimSpace(in.LoginID)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByLoginID(ctx, in.LoginID)
	if err != nil {
		return nil, fmt.Errorf("check login id: %w", err)
	}
	if taken {
		return nil, apperrors.NewConflict("login id already registered", map[string]any{"field": "login_id"})
	}
	taken, err = s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"field": "email"})
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         in.Name,
		LoginID:      in.LoginID,
		PasswordHash: hash,
		Email:        in.Email,
		Age:          in.Age,
		Authorities:  []string{domain.DefaultAuthority},
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration can pass the checks above and win the insert.
		if constraint, ok := repository.UniqueViolation(err); ok {
			field := "login_id"
			if strings.Contains(constraint, "email") {
				field = "email"
			}
			return nil, apperrors.NewConflict(strings.ReplaceAll(field, "_", " ")+" already registered", map[string]any{"field": field})
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.publish(ctx, events.EventUserRegistered, user.LoginID, "", nil)
	return user, nil
}

// Login checks credentials and issues an access token.
// Unknown login ids and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, loginID, password, clientAddr string) (*domain.AccessToken, error) {
	if loginID == "" || password == "" {
		return nil, apperrors.NewValidationError("login_id and password required", nil)
	}

	limitKey := loginID + "|" + clientAddr
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, limitKey)
		if err != nil {
			s.logger.Warn("login limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.publish(ctx, events.EventLoginThrottled, loginID, clientAddr, nil)
			return nil, apperrors.NewTooManyRequests("too many login attempts")
		}
	}

	user, err := s.users.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.burnComparison(password)
			s.publish(ctx, events.EventLoginFailed, loginID, clientAddr, events.LoginFailedPayload{Reason: "unknown_user"})
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := s.compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("compare password", zap.Error(err))
		}
		s.publish(ctx, events.EventLoginFailed, loginID, clientAddr, events.LoginFailedPayload{Reason: "bad_password"})
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokens.Issue(user.LoginID, user.Authorities)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, limitKey); err != nil {
			s.logger.Warn("reset login attempts", zap.Error(err))
		}
	}
	s.publish(ctx, events.EventLoginSucceeded, user.LoginID, clientAddr, events.LoginSucceededPayload{
		ExpiresAt:   exp,
		Authorities: user.Authorities,
	})
	return &domain.AccessToken{Value: token, Subject: user.LoginID, ExpiresAt: exp}, nil
}

// burnComparison spends the same bcrypt work on an unknown login id that a
// wrong password costs, so response time does not reveal which one failed.
func (s *AuthService) burnComparison(password string) {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword("unknown-account-placeholder", s.bcryptCost)
		if err != nil {
			s.logger.Warn("build placeholder hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_ = s.compare(s.dummyHash, password)
	}
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject, clientAddr string, payload any) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, events.Event{
		Type:       eventType,
		Subject:    subject,
		ClientAddr: clientAddr,
		Payload:    payload,
	})
	if err != nil {
		s.logger.Warn("publish auth event", zap.String("type", string(eventType)), zap.Error(err))
	}
}

func validateRegistration(in RegisterInput) error {
	details := map[string]any{}
	if in.Name == "" {
		details["name"] = "required"
	}
	if in.LoginID == "" {
		details["login_id"] = "required"
	}
	switch {
	case len(in.Password) < 8:
		details["password"] = "must be at least 8 characters"
	case len(in.Password) > auth.MaxPasswordBytes:
		details["password"] = fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		details["email"] = "invalid"
	}
	if in.Age <= 0 {
		details["age"] = "must be positive"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid registration", details)
	}
	return nil
}
