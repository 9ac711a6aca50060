package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "unauthorized", err: NewUnauthorized("no token"), wantCode: "UNAUTHORIZED", wantStatus: http.StatusUnauthorized},
		{name: "wrapped forbidden", err: fmt.Errorf("guard: %w", NewForbidden("nope")), wantCode: "FORBIDDEN", wantStatus: http.StatusForbidden},
		{name: "fiber error", err: fiber.NewError(http.StatusNotFound, "Cannot GET /x"), wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "no rows", err: fmt.Errorf("lookup: %w", pgx.ErrNoRows), wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "deadline", err: fmt.Errorf("create user: %w", context.DeadlineExceeded), wantCode: "TIMEOUT", wantStatus: http.StatusGatewayTimeout},
		{name: "unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}), wantCode: "CONFLICT", wantStatus: http.StatusConflict},
		{name: "other pg error", err: &pgconn.PgError{Code: "23502"}, wantCode: "INTERNAL_ERROR", wantStatus: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), wantCode: "INTERNAL_ERROR", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.Code != tt.wantCode || got.HTTPStatus != tt.wantStatus {
				t.Fatalf("ToDomainError() = %s/%d, want %s/%d", got.Code, got.HTTPStatus, tt.wantCode, tt.wantStatus)
			}
		})
	}

	if ToDomainError(nil) != nil {
		t.Fatal("nil error should map to nil")
	}
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternalError(cause)
	if !errors.Is(err, cause) {
		t.Fatal("internal error should unwrap to its cause")
	}
	if ToDomainError(err).Message != "internal server error" {
		t.Fatalf("message = %q", ToDomainError(err).Message)
	}
}
