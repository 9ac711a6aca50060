package auth

import "errors"

// Token classification errors. Per-request failures collapse to an anonymous
// request; ErrKeyInitialization is only returned at startup.
var (
	ErrMalformedToken           = errors.New("auth: malformed token")
	ErrBadSignature             = errors.New("auth: invalid token signature")
	ErrExpired                  = errors.New("auth: token expired")
	ErrUnsupportedAlgorithm     = errors.New("auth: unsupported signing algorithm")
	ErrMissingOrMalformedHeader = errors.New("auth: missing or malformed authorization header")
	ErrKeyInitialization        = errors.New("auth: signing key initialization failed")
)

// reason returns the short label used in logs and metrics for a classification error.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrMissingOrMalformedHeader):
		return "missing_header"
	default:
		return "malformed"
	}
}
