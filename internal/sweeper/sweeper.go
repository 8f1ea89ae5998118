// Package sweeper reclaims abandoned anonymous sessions and the videos they
// exclusively own. It runs as a background task on its own timer and never
// blocks request handling; a sweep can also be invoked on demand.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
	"github.com/vidstash/vidstash/internal/telemetry"
)

const (
	// DefaultInterval is how often the background sweep runs.
	DefaultInterval = 24 * time.Hour

	// DefaultThreshold is how long an anonymous session may stay inactive
	// before it is reclaimed.
	DefaultThreshold = 30 * 24 * time.Hour

	// listMaxTries bounds the backoff retry when listing expired sessions.
	listMaxTries = 4
)

// Config configures the sweeper.
type Config struct {
	// Interval between background sweeps. Zero means DefaultInterval.
	Interval time.Duration

	// Threshold of inactivity after which a session is reclaimed.
	// Zero means DefaultThreshold.
	Threshold time.Duration
}

// Sweeper deletes expired anonymous sessions and their videos in dependency
// order, and clears out expired user sessions while it's at it.
type Sweeper struct {
	sessions     store.AnonymousSessionStore
	userSessions store.UserSessionStore
	videos       store.VideoStore
	interval     time.Duration
	threshold    time.Duration
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sweeper. Call Start to launch the background loop, or Sweep
// directly for a one-shot pass.
func New(sessions store.AnonymousSessionStore, userSessions store.UserSessionStore, videos store.VideoStore, cfg Config, logger zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	return &Sweeper{
		sessions:     sessions,
		userSessions: userSessions,
		videos:       videos,
		interval:     cfg.Interval,
		threshold:    cfg.Threshold,
		logger:       logger,
	}
}

// Start launches the background sweep goroutine. The loop runs until Stop is
// called or the parent context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info().
		Dur("interval", s.interval).
		Dur("threshold", s.threshold).
		Msg("Expiry sweeper started")
}

// Stop cancels the background loop and waits for the in-flight sweep, if
// any, to finish its current item.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// run is the background sweep loop.
func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info().Msg("Expiry sweeper stopped")
			return

		case <-ticker.C:
			if _, err := s.Sweep(s.ctx); err != nil {
				s.logger.Error().Err(err).Msg("Sweep pass failed")
			}
		}
	}
}

// Sweep performs one reclamation pass and returns how many anonymous sessions
// were removed. A single session's cascade failing is logged and skipped;
// partial progress beats none for a best-effort reclamation job. Only total
// unavailability of the store is returned as an error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	cutoff := start.Add(-s.threshold)

	// Listing is the one step worth retrying: without it the whole pass is
	// lost, whereas per-session failures just roll over to the next pass.
	expired, err := backoff.Retry(ctx, func() ([]*models.AnonymousSession, error) {
		return s.sessions.ListInactiveBefore(ctx, cutoff)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(listMaxTries))
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	metrics := telemetry.GetMetrics()

	deleted := 0
	for _, session := range expired {
		// Honor cancellation between sessions, never mid-cascade.
		select {
		case <-ctx.Done():
			s.logger.Warn().Int("deleted", deleted).Msg("Sweep cancelled before completion")
			return deleted, ctx.Err()
		default:
		}

		if err := s.reclaim(ctx, session); err != nil {
			metrics.SweepItemFailuresTotal.Add(ctx, 1)
			s.logger.Error().
				Err(err).
				Str("session_id", session.SessionID).
				Msg("Failed to reclaim session, continuing sweep")
			continue
		}
		deleted++
	}

	expiredUserSessions, err := s.userSessions.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete expired user sessions")
	} else if expiredUserSessions > 0 {
		metrics.UserSessionsExpiredTotal.Add(ctx, int64(expiredUserSessions))
	}

	metrics.SessionsSweptTotal.Add(ctx, int64(deleted))
	metrics.SweepDuration.Record(ctx, float64(time.Since(start).Milliseconds()))

	s.logger.Info().
		Int("expired", len(expired)).
		Int("deleted", deleted).
		Int("user_sessions_expired", expiredUserSessions).
		Dur("duration", time.Since(start)).
		Msg("Sweep pass complete")

	return deleted, nil
}

// reclaim deletes one session and everything it owns, in dependency order:
// each video's dependent rows first, then the video, then the session last.
func (s *Sweeper) reclaim(ctx context.Context, session *models.AnonymousSession) error {
	videos, err := s.videos.ListBySession(ctx, session.SessionID)
	if err != nil {
		return fmt.Errorf("failed to list session videos: %w", err)
	}

	for _, video := range videos {
		for _, kind := range store.VideoDependentKinds {
			if err := s.videos.DeleteDependents(ctx, video.VideoID, kind); err != nil {
				return fmt.Errorf("failed to delete %s for video %s: %w", kind, video.VideoID, err)
			}
		}

		if err := s.videos.Delete(ctx, video.VideoID); err != nil {
			return fmt.Errorf("failed to delete video %s: %w", video.VideoID, err)
		}
		telemetry.GetMetrics().VideosDeletedTotal.Add(ctx, 1)
	}

	if err := s.sessions.Delete(ctx, session.SessionID); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}

	s.logger.Debug().
		Str("session_id", session.SessionID).
		Int("videos", len(videos)).
		Time("last_active_at", session.LastActiveAt).
		Msg("Reclaimed expired anonymous session")

	return nil
}
