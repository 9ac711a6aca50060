package auth

import (
	"context"
	"time"
)

// Identity is the caller decoded from a valid token. It lives for one request.
type Identity struct {
	Subject     string
	Authorities []string
	ExpiresAt   time.Time
}

// HasAuthority reports whether the identity was granted the authority.
func (id *Identity) HasAuthority(authority string) bool {
	if id == nil {
		return false
	}
	for _, a := range id.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// HasAnyAuthority reports whether the identity holds at least one of the authorities.
func (id *Identity) HasAnyAuthority(authorities ...string) bool {
	for _, a := range authorities {
		if id.HasAuthority(a) {
			return true
		}
	}
	return false
}

type (
	identityContextKey  struct{}
	processedContextKey struct{}
)

// WithIdentity returns a copy of ctx carrying the identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext retrieves the identity attached by the interceptor.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

func markProcessed(ctx context.Context) context.Context {
	return context.WithValue(ctx, processedContextKey{}, true)
}

func processed(ctx context.Context) bool {
	done, _ := ctx.Value(processedContextKey{}).(bool)
	return done
}
