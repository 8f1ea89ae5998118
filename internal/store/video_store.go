package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
)

// Sentinel errors for video store operations
var (
	ErrVideoNotFound = errors.New("video not found")
	ErrInvalidOwner  = errors.New("video must have exactly one owner")
)

// DependentKind names a table of rows that hang off a video and must be
// deleted before the video itself.
type DependentKind string

const (
	DependentConversations   DependentKind = "conversations"
	DependentCollectionItems DependentKind = "collection_items"
	DependentTranscripts     DependentKind = "transcripts"
)

// VideoDependentKinds is the ordered cleanup list for a video. The sweeper
// walks it front to back before deleting the video row, so new dependent
// kinds are added here rather than in the sweep control flow.
var VideoDependentKinds = []DependentKind{
	DependentConversations,
	DependentCollectionItems,
	DependentTranscripts,
}

// VideoStore defines the interface for saved-video storage. The identity
// subsystem only cares about a video's ID and its owner fields; everything
// else about a video is opaque here.
type VideoStore interface {
	// Create creates a new video.
	// Returns ErrInvalidOwner unless exactly one owner field is set.
	Create(ctx context.Context, video *models.Video) error

	// Get retrieves a video by ID.
	// Returns ErrVideoNotFound if the video doesn't exist.
	Get(ctx context.Context, videoID uuid.UUID) (*models.Video, error)

	// ListBySession returns all videos owned by an anonymous session.
	ListBySession(ctx context.Context, sessionID string) ([]*models.Video, error)

	// ListByUser returns all videos owned by a registered user.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Video, error)

	// CountBySession returns the true number of videos owned by a session.
	// This is the ground truth the quota enforcer reconciles against.
	CountBySession(ctx context.Context, sessionID string) (int, error)

	// TransferOwnership reassigns every video owned by the session to the
	// user, clearing the session owner field. Returns the number of videos
	// transferred. On PostgreSQL this is a single statement, so the resource
	// set moves all-or-nothing; either way it is safe to re-run.
	TransferOwnership(ctx context.Context, sessionID string, userID uuid.UUID) (int, error)

	// DeleteDependents deletes all rows of one dependent kind for a video.
	DeleteDependents(ctx context.Context, videoID uuid.UUID, kind DependentKind) error

	// Delete deletes a video row. Dependents must already be gone.
	// Returns ErrVideoNotFound if the video doesn't exist.
	Delete(ctx context.Context, videoID uuid.UUID) error
}
