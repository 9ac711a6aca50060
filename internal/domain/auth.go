package domain

import "time"

// AccessToken is what a successful login hands back to the caller.
type AccessToken struct {
	Value     string
	Subject   string
	ExpiresAt time.Time
}
