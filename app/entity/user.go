package entity

import (
	"database/sql"
	"time"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified bool
	LastLoginAt   sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EphemeralToken is a single-use, expiring secret bound to a user.
// Password-reset and email-verification tokens share this shape but
// live in separate tables. A token is valid while used=false and the
// expiry is in the future; rows are never deleted after consumption.
type EphemeralToken struct {
	ID        uint64
	UserID    string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
