package models

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousSession represents a pre-registration visitor identity. The session
// token itself is the primary key; there is no server-side secret beyond it.
//
// VideoCount is a cached count of videos owned by the session. It is corrected
// against the videos table on every increment, so it may briefly run ahead of
// reality but converges on the next write.
type AnonymousSession struct {
	SessionID string // opaque token, see identity.NewSessionID

	CreatedAt    time.Time
	LastActiveAt time.Time // refreshed on every request, keeps the session alive
	VideoCount   int

	// Optional audit metadata
	UserAgent string
	IPAddress string

	// Migration provenance. Set when the session's videos were transferred to a
	// registered user. The record is kept for audit rather than deleted.
	MigratedToUserID *uuid.UUID
	MigratedAt       *time.Time
}

// IsMigrated returns true if the session's videos were transferred to a user.
func (s *AnonymousSession) IsMigrated() bool {
	return s.MigratedToUserID != nil
}
