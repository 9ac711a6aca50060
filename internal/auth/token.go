package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/login-api/internal/config"
)

const (
	authoritiesClaim = "auth"
	authoritySep     = ","
	minKeyBytes      = 32
)

var errAlgorithmMismatch = errors.New("unexpected signing method")

// TokenProvider issues and validates HS512 signed access tokens.
// The key and lifetime are fixed at construction and only read afterwards.
type TokenProvider struct {
	key      []byte
	lifetime time.Duration
	parser   *jwt.Parser
	logger   *zap.Logger
	now      func() time.Time
}

// Claims is the token payload.
type Claims struct {
	Authorities *string `json:"auth"`
	jwt.RegisteredClaims
}

// NewTokenProvider decodes the base64 secret and builds the signing key.
// Any failure wraps ErrKeyInitialization and must stop the process.
func NewTokenProvider(cfg config.AuthConfig, logger *zap.Logger) (*TokenProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := decodeSecret(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyInitialization, err)
	}
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("%w: key is %d bytes, need at least %d", ErrKeyInitialization, len(key), minKeyBytes)
	}
	if cfg.TokenValiditySeconds <= 0 {
		return nil, fmt.Errorf("%w: token validity must be positive", ErrKeyInitialization)
	}

	p := &TokenProvider{
		key:      key,
		lifetime: cfg.TokenValidity(),
		logger:   logger,
		now:      time.Now,
	}
	p.parser = jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return p.now() }),
	)
	return p, nil
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("secret is empty")
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err == nil {
		return key, nil
	}
	if key, urlErr := base64.URLEncoding.DecodeString(secret); urlErr == nil {
		return key, nil
	}
	return nil, fmt.Errorf("decode base64 secret: %w", err)
}

// Lifetime returns how long issued tokens stay valid.
func (p *TokenProvider) Lifetime() time.Duration {
	return p.lifetime
}

// Issue signs a token for subject carrying the granted authorities.
// The issue instant is truncated to whole seconds to match the exp claim precision.
func (p *TokenProvider) Issue(subject string, authorities []string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	for _, a := range authorities {
		if a == "" || strings.Contains(a, authoritySep) {
			return "", time.Time{}, fmt.Errorf("invalid authority %q", a)
		}
	}

	issuedAt := p.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(p.lifetime)
	joined := strings.Join(authorities, authoritySep)
	claims := &Claims{
		Authorities: &joined,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString(p.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Decode verifies the token and returns the identity it carries.
// Errors are one of ErrMalformedToken, ErrBadSignature, ErrExpired or ErrUnsupportedAlgorithm.
func (p *TokenProvider) Decode(tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}

	parsed, err := p.parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS512 {
			return nil, errAlgorithmMismatch
		}
		return p.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" || claims.Authorities == nil {
		return nil, ErrMalformedToken
	}

	identity := &Identity{
		Subject:     claims.Subject,
		Authorities: splitAuthorities(*claims.Authorities),
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// Validate reports whether the token is well formed, correctly signed and unexpired.
func (p *TokenProvider) Validate(tokenStr string) bool {
	_, err := p.Decode(tokenStr)
	return err == nil
}

// Resolve decodes the token and collapses every failure to false after logging
// its classification.
func (p *TokenProvider) Resolve(tokenStr string) (*Identity, bool) {
	identity, err := p.Decode(tokenStr)
	if err != nil {
		p.logger.Info("rejected access token", zap.String("reason", reason(err)))
		return nil, false
	}
	return identity, true
}

func classify(err error) error {
	switch {
	case errors.Is(err, errAlgorithmMismatch), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrBadSignature
	default:
		return ErrMalformedToken
	}
}

func splitAuthorities(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, authoritySep)
}
