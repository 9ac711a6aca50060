package dto

import "time"

// UserRegisterRequest payload for new accounts.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Age      int    `json:"age"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	LoginID string `json:"login_id"`
	Email   string `json:"email"`
	Age     int    `json:"age"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityResponse describes the caller attached to the request.
type IdentityResponse struct {
	Subject     string    `json:"subject"`
	Authorities []string  `json:"authorities"`
	ExpiresAt   time.Time `json:"expires_at"`
}
