package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

// AnonymousSessionStore implements store.AnonymousSessionStore using in-memory storage.
// This implementation is for testing and development - data is lost on restart.
type AnonymousSessionStore struct {
	mu sync.RWMutex

	sessions map[string]*models.AnonymousSession // session_id -> session
}

// NewAnonymousSessionStore creates a new in-memory anonymous session store.
func NewAnonymousSessionStore() *AnonymousSessionStore {
	return &AnonymousSessionStore{
		sessions: make(map[string]*models.AnonymousSession),
	}
}

// Create creates a new anonymous session in memory.
func (s *AnonymousSessionStore) Create(ctx context.Context, session *models.AnonymousSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.SessionID]; exists {
		return store.ErrAnonymousSessionExists
	}

	// Clone to avoid external modifications
	clone := *session
	s.sessions[session.SessionID] = &clone

	return nil
}

// Get retrieves an anonymous session by ID.
func (s *AnonymousSessionStore) Get(ctx context.Context, sessionID string) (*models.AnonymousSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, store.ErrAnonymousSessionNotFound
	}

	// Clone to avoid external modifications
	clone := *session
	return &clone, nil
}

// Touch refreshes the session's last_active_at timestamp.
func (s *AnonymousSessionStore) Touch(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrAnonymousSessionNotFound
	}

	session.LastActiveAt = time.Now()
	return nil
}

// SetVideoCount overwrites the cached video counter.
func (s *AnonymousSessionStore) SetVideoCount(ctx context.Context, sessionID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrAnonymousSessionNotFound
	}

	session.VideoCount = count
	return nil
}

// MarkMigrated zeroes the counter and records migration provenance.
func (s *AnonymousSessionStore) MarkMigrated(ctx context.Context, sessionID string, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrAnonymousSessionNotFound
	}

	session.VideoCount = 0
	uid := userID
	ts := at
	session.MigratedToUserID = &uid
	session.MigratedAt = &ts

	return nil
}

// ListInactiveBefore returns sessions whose last_active_at is before the cutoff.
func (s *AnonymousSessionStore) ListInactiveBefore(ctx context.Context, cutoff time.Time) ([]*models.AnonymousSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var inactive []*models.AnonymousSession
	for _, session := range s.sessions {
		if session.LastActiveAt.Before(cutoff) {
			clone := *session
			inactive = append(inactive, &clone)
		}
	}

	return inactive, nil
}

// Delete removes a session record.
func (s *AnonymousSessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return store.ErrAnonymousSessionNotFound
	}

	delete(s.sessions, sessionID)
	return nil
}
