package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Videos saved before registration are
// reassigned to the user when their anonymous session is migrated.
type User struct {
	UserID uuid.UUID // UUIDv7
	Email  string

	// PasswordHash is a bcrypt hash. Hashing policy lives in the auth package.
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}
