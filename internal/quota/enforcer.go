// Package quota enforces the per-session video limit for anonymous visitors.
// Registered users are never consulted here; their limits, if any, are a
// separate concern.
package quota

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vidstash/vidstash/internal/store"
	"github.com/vidstash/vidstash/internal/telemetry"
)

// DefaultLimit is the product default for videos an anonymous session may
// save before registration is required. Configurable via the server flags.
const DefaultLimit = 3

// Enforcer checks and maintains the per-session video counter.
type Enforcer struct {
	sessions store.AnonymousSessionStore
	videos   store.VideoStore
	limit    int
	logger   zerolog.Logger
}

// NewEnforcer creates a quota enforcer with the given limit. A limit <= 0
// falls back to DefaultLimit.
func NewEnforcer(sessions store.AnonymousSessionStore, videos store.VideoStore, limit int, logger zerolog.Logger) *Enforcer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Enforcer{
		sessions: sessions,
		videos:   videos,
		limit:    limit,
		logger:   logger,
	}
}

// Limit returns the configured quota.
func (e *Enforcer) Limit() int {
	return e.limit
}

// HasReachedLimit reports whether the session has used up its quota. Being at
// the limit is a normal outcome, not an error; the only error here is a
// missing session, which means the resolver and enforcer disagree about
// session existence and must be surfaced.
func (e *Enforcer) HasReachedLimit(ctx context.Context, sessionID string) (bool, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to check quota for session: %w", err)
	}

	reached := session.VideoCount >= e.limit
	if reached {
		telemetry.GetMetrics().QuotaRejectionsTotal.Add(ctx, 1)
		e.logger.Debug().
			Str("session_id", sessionID).
			Int("count", session.VideoCount).
			Int("limit", e.limit).
			Msg("Anonymous session at video limit")
	}

	return reached, nil
}

// IncrementOnCreate updates the session's counter after a video has been
// created and attributed to it. Rather than adding one to the stored value,
// it recounts the videos that actually reference the session and stores that,
// so any drift introduced by partial failures elsewhere is corrected on the
// next write. Returns the new count.
func (e *Enforcer) IncrementOnCreate(ctx context.Context, sessionID string) (int, error) {
	count, err := e.videos.CountBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to recount session videos: %w", err)
	}

	if err := e.sessions.SetVideoCount(ctx, sessionID, count); err != nil {
		return 0, fmt.Errorf("failed to store corrected video count: %w", err)
	}

	e.logger.Debug().
		Str("session_id", sessionID).
		Int("count", count).
		Msg("Reconciled session video count")

	return count, nil
}
