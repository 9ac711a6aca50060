package domain

import "time"

// DefaultAuthority is granted to every newly registered user.
const DefaultAuthority = "ROLE_USER"

// User is an account able to log in and receive access tokens.
type User struct {
	ID           int64
	Name         string
	LoginID      string
	PasswordHash string
	Email        string
	Age          int
	Authorities  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
