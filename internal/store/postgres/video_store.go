package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

// VideoStore implements store.VideoStore using PostgreSQL.
type VideoStore struct {
	pool *pgxpool.Pool
}

// NewVideoStore creates a new PostgreSQL-backed video store.
func NewVideoStore(pool *pgxpool.Pool) *VideoStore {
	return &VideoStore{
		pool: pool,
	}
}

// dependentTables maps dependent kinds to their tables. A kind missing here
// is a programming error, caught at the call site.
var dependentTables = map[store.DependentKind]string{
	store.DependentConversations:   "video_conversations",
	store.DependentCollectionItems: "video_collection_items",
	store.DependentTranscripts:     "video_transcripts",
}

// Create creates a new video. The videos_single_owner CHECK constraint backs
// up the application-level owner validation.
func (s *VideoStore) Create(ctx context.Context, video *models.Video) error {
	if !video.ValidateOwner() {
		return store.ErrInvalidOwner
	}

	query := `
		INSERT INTO videos (
			video_id, url, title, owner_user_id, owner_session_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.pool.Exec(ctx, query,
		video.VideoID,
		video.URL,
		video.Title,
		video.OwnerUserID,
		video.OwnerSessionID,
		video.CreatedAt,
	)

	if err != nil {
		if mapped := mapPostgresError(err); errors.Is(mapped, store.ErrInvalidOwner) {
			return store.ErrInvalidOwner
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	log.Debug().
		Str("video_id", video.VideoID.String()).
		Msg("Created video")

	return nil
}

// Get retrieves a video by ID.
func (s *VideoStore) Get(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	query := `
		SELECT video_id, url, title, owner_user_id, owner_session_id, created_at
		FROM videos
		WHERE video_id = $1
	`

	var video models.Video
	err := s.pool.QueryRow(ctx, query, videoID).Scan(
		&video.VideoID,
		&video.URL,
		&video.Title,
		&video.OwnerUserID,
		&video.OwnerSessionID,
		&video.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return &video, nil
}

// ListBySession returns all videos owned by an anonymous session.
func (s *VideoStore) ListBySession(ctx context.Context, sessionID string) ([]*models.Video, error) {
	query := `
		SELECT video_id, url, title, owner_user_id, owner_session_id, created_at
		FROM videos
		WHERE owner_session_id = $1
		ORDER BY created_at
	`

	return s.list(ctx, query, sessionID)
}

// ListByUser returns all videos owned by a registered user.
func (s *VideoStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Video, error) {
	query := `
		SELECT video_id, url, title, owner_user_id, owner_session_id, created_at
		FROM videos
		WHERE owner_user_id = $1
		ORDER BY created_at
	`

	return s.list(ctx, query, userID)
}

func (s *VideoStore) list(ctx context.Context, query string, arg any) ([]*models.Video, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		var video models.Video
		if err := rows.Scan(
			&video.VideoID,
			&video.URL,
			&video.Title,
			&video.OwnerUserID,
			&video.OwnerSessionID,
			&video.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		videos = append(videos, &video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read video rows: %w", err)
	}

	return videos, nil
}

// CountBySession returns the true number of videos owned by a session.
func (s *VideoStore) CountBySession(ctx context.Context, sessionID string) (int, error) {
	query := `SELECT count(*) FROM videos WHERE owner_session_id = $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count session videos: %w", err)
	}

	return count, nil
}

// TransferOwnership reassigns every video owned by the session to the user.
// A single UPDATE keeps the transfer all-or-nothing; re-running it matches
// zero rows and is a no-op.
func (s *VideoStore) TransferOwnership(ctx context.Context, sessionID string, userID uuid.UUID) (int, error) {
	query := `
		UPDATE videos
		SET owner_user_id = $2, owner_session_id = NULL
		WHERE owner_session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer video ownership: %w", err)
	}

	count := int(result.RowsAffected())

	if count > 0 {
		log.Info().
			Str("session_id", sessionID).
			Str("user_id", userID.String()).
			Int("count", count).
			Msg("Transferred video ownership")
	}

	return count, nil
}

// DeleteDependents deletes all rows of one dependent kind for a video.
func (s *VideoStore) DeleteDependents(ctx context.Context, videoID uuid.UUID, kind store.DependentKind) error {
	table, ok := dependentTables[kind]
	if !ok {
		return fmt.Errorf("unknown dependent kind %q", kind)
	}

	// Table name comes from the fixed map above, never from input
	query := fmt.Sprintf(`DELETE FROM %s WHERE video_id = $1`, table)

	if _, err := s.pool.Exec(ctx, query, videoID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}

	return nil
}

// Delete deletes a video row. Dependent rows must already be gone or the FK
// constraints will reject the delete.
func (s *VideoStore) Delete(ctx context.Context, videoID uuid.UUID) error {
	query := `DELETE FROM videos WHERE video_id = $1`

	result, err := s.pool.Exec(ctx, query, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrVideoNotFound
	}

	return nil
}
