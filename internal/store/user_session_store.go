package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
)

// Sentinel errors for user session store operations
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// UserSessionStore defines the interface for registered-user session storage.
type UserSessionStore interface {
	// Create creates a new session in the store.
	Create(ctx context.Context, session *models.UserSession) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist,
	// ErrSessionExpired if it exists but has expired.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.UserSession, error)

	// UpdateLastUsed updates the last_used_at timestamp for a session.
	// Returns ErrSessionNotFound if the session doesn't exist.
	UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error

	// Delete deletes a session by ID (logout).
	// Returns ErrSessionNotFound if the session doesn't exist.
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// DeleteByUser deletes all sessions for a user (password change,
	// logout everywhere). Returns the number of sessions deleted.
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// DeleteExpired deletes all expired sessions (cleanup job).
	// Returns the number of sessions deleted.
	DeleteExpired(ctx context.Context) (int, error)
}
