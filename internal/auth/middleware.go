package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/spec-kit/login-api/internal/observability"
)

const (
	// AuthorizationHeader carries the access token.
	AuthorizationHeader = "Authorization"
	// BearerScheme is the only accepted authorization scheme.
	BearerScheme = "BEARER"
	// BearerPrefix is matched case-sensitively and includes the separating space.
	BearerPrefix = BearerScheme + " "

	identityKey  = "auth_identity"
	processedKey = "auth_processed"

	tracerName = "github.com/spec-kit/login-api/internal/auth"
	spanName   = "auth.authenticate"
)

// IdentityResolver turns a raw token into an identity. Failures are reported
// only as false.
type IdentityResolver interface {
	Resolve(token string) (*Identity, bool)
}

// AuthMiddleware attaches the caller identity to each request carrying a valid
// bearer token. It never rejects a request.
type AuthMiddleware struct {
	tokens  IdentityResolver
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewAuthMiddleware constructs middleware. Spans go to the global tracer
// provider, which is a no-op until one is installed.
func NewAuthMiddleware(tokens IdentityResolver, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, metrics: metrics, tracer: otel.Tracer(tracerName)}
}

// WithTracer replaces the tracer used for authentication spans.
func (m *AuthMiddleware) WithTracer(tracer trace.Tracer) *AuthMiddleware {
	if tracer != nil {
		m.tracer = tracer
	}
	return m
}

// ExtractToken returns the token following the BEARER prefix. A missing,
// empty or differently prefixed header yields false.
func ExtractToken(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := header[len(BearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

// Authenticate resolves the identity for an Authorization header value. The
// decision is recorded as a span carrying the outcome, never the token.
func (m *AuthMiddleware) Authenticate(ctx context.Context, header string) (*Identity, bool) {
	_, span := m.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	identity, outcome := m.resolve(header)
	m.metrics.RecordAuthOutcome(outcome)
	span.SetAttributes(attribute.String("auth.outcome", string(outcome)))
	if identity == nil {
		return nil, false
	}
	span.SetAttributes(
		attribute.String("enduser.id", identity.Subject),
		attribute.StringSlice("enduser.authorities", identity.Authorities),
	)
	return identity, true
}

func (m *AuthMiddleware) resolve(header string) (*Identity, observability.AuthOutcome) {
	token, ok := ExtractToken(header)
	if !ok {
		return nil, observability.AuthOutcomeAnonymous
	}
	identity, ok := m.tokens.Resolve(token)
	if !ok || identity == nil {
		return nil, observability.AuthOutcomeRejected
	}
	return identity, observability.AuthOutcomeAuthenticated
}

// Handle runs once per request and always continues the chain.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if c.Locals(processedKey) != nil {
		return c.Next()
	}
	c.Locals(processedKey, true)

	if identity, ok := m.Authenticate(c.UserContext(), c.Get(AuthorizationHeader)); ok {
		c.Locals(identityKey, identity)
		c.SetUserContext(WithIdentity(c.UserContext(), identity))
	}
	return c.Next()
}

// Wrap is the net/http form of Handle.
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if processed(r.Context()) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := markProcessed(r.Context())
		if identity, ok := m.Authenticate(ctx, r.Header.Get(AuthorizationHeader)); ok {
			ctx = WithIdentity(ctx, identity)
		}
		r = r.WithContext(ctx)
		next.ServeHTTP(w, r)
	})
}

// IdentityFromCtx retrieves the authenticated caller, if any.
func IdentityFromCtx(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}
