package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
)

// Sentinel errors for anonymous session store operations
var (
	ErrAnonymousSessionNotFound = errors.New("anonymous session not found")
	ErrAnonymousSessionExists   = errors.New("anonymous session already exists")
)

// AnonymousSessionStore defines the interface for anonymous session storage.
// Anonymous sessions track pre-registration visitors and their video quota.
type AnonymousSessionStore interface {
	// Create creates a new anonymous session in the store.
	// Returns ErrAnonymousSessionExists if the session ID is already taken;
	// an existing session is never overwritten.
	Create(ctx context.Context, session *models.AnonymousSession) error

	// Get retrieves an anonymous session by ID.
	// Returns ErrAnonymousSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, sessionID string) (*models.AnonymousSession, error)

	// Touch refreshes the session's last_active_at timestamp. This is what
	// keeps a session alive against the expiry sweeper.
	// Returns ErrAnonymousSessionNotFound if the session doesn't exist.
	Touch(ctx context.Context, sessionID string) error

	// SetVideoCount overwrites the cached video counter with a recomputed
	// value. Used by the quota enforcer's drift correction.
	// Returns ErrAnonymousSessionNotFound if the session doesn't exist.
	SetVideoCount(ctx context.Context, sessionID string, count int) error

	// MarkMigrated zeroes the video counter and records migration provenance
	// (target user and timestamp). The session record is retained for audit.
	// Returns ErrAnonymousSessionNotFound if the session doesn't exist.
	MarkMigrated(ctx context.Context, sessionID string, userID uuid.UUID, at time.Time) error

	// ListInactiveBefore returns all sessions whose last_active_at is strictly
	// before the cutoff. Used by the expiry sweeper.
	ListInactiveBefore(ctx context.Context, cutoff time.Time) ([]*models.AnonymousSession, error)

	// Delete removes a session record.
	// Returns ErrAnonymousSessionNotFound if the session doesn't exist.
	Delete(ctx context.Context, sessionID string) error
}
