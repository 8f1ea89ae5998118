package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

// VideoStore implements store.VideoStore using in-memory storage.
// This implementation is for testing and development - data is lost on restart.
type VideoStore struct {
	mu sync.RWMutex

	videos map[uuid.UUID]*models.Video // video_id -> video

	// Per-video dependent rows, keyed by kind. The identity subsystem never
	// reads dependent content, it only deletes it in order.
	dependents map[uuid.UUID]map[store.DependentKind][]string
}

// NewVideoStore creates a new in-memory video store.
func NewVideoStore() *VideoStore {
	return &VideoStore{
		videos:     make(map[uuid.UUID]*models.Video),
		dependents: make(map[uuid.UUID]map[store.DependentKind][]string),
	}
}

// Create creates a new video.
func (s *VideoStore) Create(ctx context.Context, video *models.Video) error {
	if !video.ValidateOwner() {
		return store.ErrInvalidOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone to avoid external modifications
	clone := *video
	s.videos[video.VideoID] = &clone

	return nil
}

// Get retrieves a video by ID.
func (s *VideoStore) Get(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, exists := s.videos[videoID]
	if !exists {
		return nil, store.ErrVideoNotFound
	}

	clone := *video
	return &clone, nil
}

// ListBySession returns all videos owned by an anonymous session.
func (s *VideoStore) ListBySession(ctx context.Context, sessionID string) ([]*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var videos []*models.Video
	for _, video := range s.videos {
		if video.OwnedBySession(sessionID) {
			clone := *video
			videos = append(videos, &clone)
		}
	}

	return videos, nil
}

// ListByUser returns all videos owned by a registered user.
func (s *VideoStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var videos []*models.Video
	for _, video := range s.videos {
		if video.OwnedByUser(userID) {
			clone := *video
			videos = append(videos, &clone)
		}
	}

	return videos, nil
}

// CountBySession returns the true number of videos owned by a session.
func (s *VideoStore) CountBySession(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, video := range s.videos {
		if video.OwnedBySession(sessionID) {
			count++
		}
	}

	return count, nil
}

// TransferOwnership reassigns every video owned by the session to the user.
func (s *VideoStore) TransferOwnership(ctx context.Context, sessionID string, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, video := range s.videos {
		if video.OwnedBySession(sessionID) {
			uid := userID
			video.OwnerUserID = &uid
			video.OwnerSessionID = nil
			count++
		}
	}

	return count, nil
}

// DeleteDependents deletes all rows of one dependent kind for a video.
func (s *VideoStore) DeleteDependents(ctx context.Context, videoID uuid.UUID, kind store.DependentKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deps, exists := s.dependents[videoID]; exists {
		delete(deps, kind)
		if len(deps) == 0 {
			delete(s.dependents, videoID)
		}
	}

	return nil
}

// Delete deletes a video row.
func (s *VideoStore) Delete(ctx context.Context, videoID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.videos[videoID]; !exists {
		return store.ErrVideoNotFound
	}

	delete(s.videos, videoID)
	delete(s.dependents, videoID)

	return nil
}

// AddDependent records a dependent row for a video. Only used by tests to
// seed cleanup data; the production dependent tables live in PostgreSQL.
func (s *VideoStore) AddDependent(videoID uuid.UUID, kind store.DependentKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.dependents[videoID]; !exists {
		s.dependents[videoID] = make(map[store.DependentKind][]string)
	}
	s.dependents[videoID][kind] = append(s.dependents[videoID][kind], id)
}

// DependentCount returns the number of dependent rows of one kind. Test helper.
func (s *VideoStore) DependentCount(videoID uuid.UUID, kind store.DependentKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.dependents[videoID][kind])
}
