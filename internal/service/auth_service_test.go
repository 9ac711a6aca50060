package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/login-api/internal/auth"
	"github.com/spec-kit/login-api/internal/config"
	"github.com/spec-kit/login-api/internal/domain"
	apperrors "github.com/spec-kit/login-api/pkg/util"
)

type memoryUsers struct {
	mu        sync.Mutex
	nextID    int64
	users     map[string]*domain.User
	createErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*domain.User{}}
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	m.users[user.LoginID] = &copied
	return nil
}

func (m *memoryUsers) GetByLoginID(_ context.Context, loginID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[loginID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *memoryUsers) ExistsByLoginID(_ context.Context, loginID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[loginID]
	return ok, nil
}

func (m *memoryUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type countingLimiter struct {
	limit    int
	attempts map[string]int
	resets   int
	err      error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.attempts[key]++
	return l.attempts[key] <= l.limit, nil
}

func (l *countingLimiter) Reset(_ context.Context, key string) error {
	l.resets++
	delete(l.attempts, key)
	return nil
}

func newTestService(t *testing.T, limiter AttemptLimiter) (*AuthService, *auth.TokenProvider) {
	t.Helper()
	tokens, err := auth.NewTokenProvider(config.AuthConfig{
		JWTSecret:            "dGVzdC1zZWNyZXQta2V5LTMyLWJ5dGVzLW1pbmltdW0=",
		TokenValiditySeconds: 60,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	svc := NewAuthService(AuthDependencies{
		UserRepo:   newMemoryUsers(),
		Tokens:     tokens,
		Limiter:    limiter,
		BcryptCost: 4,
	})
	return svc, tokens
}

func validInput() RegisterInput {
	return RegisterInput{Name: "Alice", LoginID: "alice", Password: "correct-horse", Email: "alice@example.com", Age: 30}
}

func statusOf(err error) int {
	if err == nil {
		return 0
	}
	return apperrors.ToDomainError(err).HTTPStatus
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newTestService(t, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == 0 || user.PasswordHash == "correct-horse" {
		t.Fatalf("user = %+v", user)
	}

	access, err := svc.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	identity, err := tokens.Decode(access.Value)
	if err != nil {
		t.Fatalf("decode issued token: %v", err)
	}
	if identity.Subject != "alice" || !identity.HasAuthority(domain.DefaultAuthority) {
		t.Fatalf("identity = %+v", identity)
	}
	if !access.ExpiresAt.Equal(identity.ExpiresAt) {
		t.Fatalf("expires at %v vs claim %v", access.ExpiresAt, identity.ExpiresAt)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	sameLogin := validInput()
	sameLogin.Email = "other@example.com"
	if _, err := svc.Register(ctx, sameLogin); statusOf(err) != http.StatusConflict {
		t.Fatalf("duplicate login id: %v", err)
	}

	sameEmail := validInput()
	sameEmail.LoginID = "alice2"
	if _, err := svc.Register(ctx, sameEmail); statusOf(err) != http.StatusConflict {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestRegisterMapsInsertRaceToConflict(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantField  string
	}{
		{name: "login id", constraint: "users_login_id_key", wantField: "login_id"},
		{name: "email", constraint: "users_email_key", wantField: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, nil)
			svc.users = &memoryUsers{
				users:     map[string]*domain.User{},
				createErr: &pgconn.PgError{Code: "23505", ConstraintName: tt.constraint},
			}

			_, err := svc.Register(context.Background(), validInput())
			if statusOf(err) != http.StatusConflict {
				t.Fatalf("expected conflict, got %v", err)
			}
			if field := apperrors.ToDomainError(err).Details["field"]; field != tt.wantField {
				t.Fatalf("field = %v, want %s", field, tt.wantField)
			}
		})
	}
}

func TestRegisterSurfacesOtherInsertFailures(t *testing.T) {
	svc, _ := newTestService(t, nil)
	svc.users = &memoryUsers{users: map[string]*domain.User{}, createErr: errors.New("connection reset")}

	if _, err := svc.Register(context.Background(), validInput()); statusOf(err) != http.StatusInternalServerError {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestLoginComparesPasswordForUnknownUser(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	var compared []string
	svc.compare = func(hashed, plain string) error {
		compared = append(compared, hashed)
		return auth.ComparePassword(hashed, plain)
	}

	if _, err := svc.Login(ctx, "ghost", "correct-horse", "10.0.0.1"); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("unknown user: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong-password", "10.0.0.1"); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("wrong password: %v", err)
	}

	if len(compared) != 2 {
		t.Fatalf("bcrypt comparisons = %d, want one per failed login", len(compared))
	}
	if compared[0] == "" || compared[0] == compared[1] {
		t.Fatalf("unknown user must compare against a placeholder hash, got %q", compared[0])
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{name: "blank name", mutate: func(in *RegisterInput) { in.Name = "  " }},
		{name: "blank login id", mutate: func(in *RegisterInput) { in.LoginID = "" }},
		{name: "short password", mutate: func(in *RegisterInput) { in.Password = "short" }},
		{name: "password beyond bcrypt limit", mutate: func(in *RegisterInput) { in.Password = strings.Repeat("p", 73) }},
		{name: "bad email", mutate: func(in *RegisterInput) { in.Email = "not-an-email" }},
		{name: "zero age", mutate: func(in *RegisterInput) { in.Age = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			if _, err := svc.Register(context.Background(), in); statusOf(err) != http.StatusBadRequest {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, unknownErr := svc.Login(ctx, "nobody", "correct-horse", "10.0.0.1")
	_, wrongErr := svc.Login(ctx, "alice", "wrong-password", "10.0.0.1")
	for _, err := range []error{unknownErr, wrongErr} {
		de := apperrors.ToDomainError(err)
		if de.HTTPStatus != http.StatusUnauthorized || de.Message != "invalid credentials" {
			t.Fatalf("login failure = %v", err)
		}
	}
}

func TestLoginRateLimited(t *testing.T) {
	limiter := &countingLimiter{limit: 2, attempts: map[string]int{}}
	svc, _ := newTestService(t, limiter)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, "alice", "wrong-password", "10.0.0.1"); statusOf(err) != http.StatusUnauthorized {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := svc.Login(ctx, "alice", "correct-horse", "10.0.0.1"); statusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "correct-horse", "10.0.0.2"); err != nil {
		t.Fatalf("other client should not be limited: %v", err)
	}
	if limiter.resets != 1 {
		t.Fatalf("resets = %d, want 1", limiter.resets)
	}
}

func TestLoginFailsOpenWhenLimiterErrors(t *testing.T) {
	limiter := &countingLimiter{limit: 1, attempts: map[string]int{}, err: errors.New("redis down")}
	svc, _ := newTestService(t, limiter)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "correct-horse", "10.0.0.1"); err != nil {
		t.Fatalf("login with failing limiter: %v", err)
	}
}
