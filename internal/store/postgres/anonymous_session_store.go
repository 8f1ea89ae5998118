package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

// AnonymousSessionStore implements store.AnonymousSessionStore using PostgreSQL.
type AnonymousSessionStore struct {
	pool *pgxpool.Pool
}

// NewAnonymousSessionStore creates a new PostgreSQL-backed anonymous session store.
func NewAnonymousSessionStore(pool *pgxpool.Pool) *AnonymousSessionStore {
	return &AnonymousSessionStore{
		pool: pool,
	}
}

// Create creates a new anonymous session in the database. A duplicate token
// hits the primary key and maps to store.ErrAnonymousSessionExists.
func (s *AnonymousSessionStore) Create(ctx context.Context, session *models.AnonymousSession) error {
	query := `
		INSERT INTO anonymous_sessions (
			session_id, created_at, last_active_at, video_count,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6::inet
		)
	`

	// Convert empty IP address to nil for proper INET handling
	var ipAddress any
	if session.IPAddress != "" {
		ipAddress = session.IPAddress
	}

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.CreatedAt,
		session.LastActiveAt,
		session.VideoCount,
		session.UserAgent,
		ipAddress,
	)

	if err != nil {
		if mapped := mapPostgresError(err); errors.Is(mapped, store.ErrAnonymousSessionExists) {
			return store.ErrAnonymousSessionExists
		}
		return fmt.Errorf("failed to create anonymous session: %w", err)
	}

	log.Debug().
		Str("session_id", session.SessionID).
		Msg("Created anonymous session")

	return nil
}

// Get retrieves an anonymous session by ID.
func (s *AnonymousSessionStore) Get(ctx context.Context, sessionID string) (*models.AnonymousSession, error) {
	query := `
		SELECT
			session_id, created_at, last_active_at, video_count,
			user_agent, ip_address, migrated_to_user_id, migrated_at
		FROM anonymous_sessions
		WHERE session_id = $1
	`

	var session models.AnonymousSession
	var ipAddress any
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&session.SessionID,
		&session.CreatedAt,
		&session.LastActiveAt,
		&session.VideoCount,
		&session.UserAgent,
		&ipAddress,
		&session.MigratedToUserID,
		&session.MigratedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAnonymousSessionNotFound
		}
		return nil, fmt.Errorf("failed to get anonymous session: %w", err)
	}

	if ipAddress != nil {
		session.IPAddress = fmt.Sprintf("%v", ipAddress)
	}

	return &session, nil
}

// Touch refreshes the session's last_active_at timestamp.
func (s *AnonymousSessionStore) Touch(ctx context.Context, sessionID string) error {
	query := `
		UPDATE anonymous_sessions
		SET last_active_at = $2
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to touch anonymous session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrAnonymousSessionNotFound
	}

	return nil
}

// SetVideoCount overwrites the cached video counter with a recomputed value.
func (s *AnonymousSessionStore) SetVideoCount(ctx context.Context, sessionID string, count int) error {
	query := `
		UPDATE anonymous_sessions
		SET video_count = $2
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, count)
	if err != nil {
		return fmt.Errorf("failed to set video count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrAnonymousSessionNotFound
	}

	return nil
}

// MarkMigrated zeroes the counter and records migration provenance.
func (s *AnonymousSessionStore) MarkMigrated(ctx context.Context, sessionID string, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE anonymous_sessions
		SET video_count = 0, migrated_to_user_id = $2, migrated_at = $3
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, userID, at)
	if err != nil {
		return fmt.Errorf("failed to mark session migrated: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrAnonymousSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("user_id", userID.String()).
		Msg("Marked anonymous session migrated")

	return nil
}

// ListInactiveBefore returns sessions whose last_active_at is before the cutoff.
func (s *AnonymousSessionStore) ListInactiveBefore(ctx context.Context, cutoff time.Time) ([]*models.AnonymousSession, error) {
	query := `
		SELECT
			session_id, created_at, last_active_at, video_count,
			user_agent, ip_address, migrated_to_user_id, migrated_at
		FROM anonymous_sessions
		WHERE last_active_at < $1
		ORDER BY last_active_at
	`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.AnonymousSession
	for rows.Next() {
		var session models.AnonymousSession
		var ipAddress any
		if err := rows.Scan(
			&session.SessionID,
			&session.CreatedAt,
			&session.LastActiveAt,
			&session.VideoCount,
			&session.UserAgent,
			&ipAddress,
			&session.MigratedToUserID,
			&session.MigratedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if ipAddress != nil {
			session.IPAddress = fmt.Sprintf("%v", ipAddress)
		}
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session rows: %w", err)
	}

	return sessions, nil
}

// Delete removes a session record.
func (s *AnonymousSessionStore) Delete(ctx context.Context, sessionID string) error {
	query := `DELETE FROM anonymous_sessions WHERE session_id = $1`

	result, err := s.pool.Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete anonymous session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrAnonymousSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID).
		Msg("Deleted anonymous session")

	return nil
}
