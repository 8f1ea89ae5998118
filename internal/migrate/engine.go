// Package migrate transfers ownership of an anonymous session's videos to a
// registered user. The engine has no HTTP awareness; the auth flow decides
// when to invoke it and only hands it a session ID and a user ID.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidstash/vidstash/internal/identity"
	"github.com/vidstash/vidstash/internal/store"
	"github.com/vidstash/vidstash/internal/telemetry"
)

// Result reports what a migration attempt did.
type Result struct {
	// MigratedCount is the number of videos transferred by this attempt.
	// Zero for an empty or already-migrated session; that is success.
	MigratedCount int
}

// Engine performs session-to-user migrations. Safe to call concurrently for
// different sessions, and safe to re-run for the same pair: a second attempt
// finds no remaining videos and reports zero without error.
type Engine struct {
	sessions store.AnonymousSessionStore
	users    store.UserStore
	videos   store.VideoStore
	logger   zerolog.Logger
}

// NewEngine creates a migration engine over the given stores.
func NewEngine(sessions store.AnonymousSessionStore, users store.UserStore, videos store.VideoStore, logger zerolog.Logger) *Engine {
	return &Engine{
		sessions: sessions,
		users:    users,
		videos:   videos,
		logger:   logger,
	}
}

// Migrate reassigns every video owned by the anonymous session to the user,
// then retires the session: its counter is zeroed and migration provenance is
// recorded on the record, which is kept for audit rather than deleted.
//
// Validation failures (identity.ErrInvalidSessionFormat,
// store.ErrAnonymousSessionNotFound, store.ErrUserNotFound) abort with zero
// side effects and are terminal for the call; they are never retried here.
func (e *Engine) Migrate(ctx context.Context, sessionID string, userID uuid.UUID) (Result, error) {
	if err := identity.ValidateSessionID(sessionID); err != nil {
		return Result{}, err
	}

	if _, err := e.sessions.Get(ctx, sessionID); err != nil {
		return Result{}, fmt.Errorf("failed to load session for migration: %w", err)
	}

	if _, err := e.users.Get(ctx, userID); err != nil {
		return Result{}, fmt.Errorf("failed to load migration target user: %w", err)
	}

	// Transfer. On PostgreSQL this is one statement, so the whole set moves
	// or nothing does; the in-memory store reassigns row by row but a re-run
	// picks up whatever was left behind.
	count, err := e.videos.TransferOwnership(ctx, sessionID, userID)
	if err != nil {
		telemetry.GetMetrics().MigrationErrorsTotal.Add(ctx, 1)
		return Result{}, fmt.Errorf("failed to transfer video ownership: %w", err)
	}

	// Retire. Zeroing the counter after the transfer keeps the invariant
	// that the counter never undercounts the session's remaining videos.
	if err := e.sessions.MarkMigrated(ctx, sessionID, userID, time.Now()); err != nil {
		telemetry.GetMetrics().MigrationErrorsTotal.Add(ctx, 1)
		return Result{}, fmt.Errorf("failed to retire migrated session: %w", err)
	}

	metrics := telemetry.GetMetrics()
	metrics.MigrationsTotal.Add(ctx, 1)
	metrics.VideosMigratedTotal.Add(ctx, int64(count))

	e.logger.Info().
		Str("session_id", sessionID).
		Str("user_id", userID.String()).
		Int("migrated_count", count).
		Msg("Migrated anonymous session to user")

	return Result{MigratedCount: count}, nil
}
