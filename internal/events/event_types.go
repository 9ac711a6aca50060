package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLoginThrottled EventType = "login_throttled"
)

// Event represents an authentication event emitted by services.
// It never carries passwords or tokens.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Subject    string    `json:"subject"`
	ClientAddr string    `json:"client_addr,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// LoginFailedPayload explains why credentials were refused.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// LoginSucceededPayload describes the token handed out.
type LoginSucceededPayload struct {
	ExpiresAt   time.Time `json:"expires_at"`
	Authorities []string  `json:"authorities"`
}
