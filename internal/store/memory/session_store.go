package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

// UserSessionStore implements store.UserSessionStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type UserSessionStore struct {
	mu sync.RWMutex

	sessions       map[uuid.UUID]*models.UserSession // session_id -> session
	sessionsByUser map[uuid.UUID][]uuid.UUID         // user_id -> []session_id
}

// NewUserSessionStore creates a new in-memory user session store.
func NewUserSessionStore() *UserSessionStore {
	return &UserSessionStore{
		sessions:       make(map[uuid.UUID]*models.UserSession),
		sessionsByUser: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Create creates a new session in memory.
func (s *UserSessionStore) Create(ctx context.Context, session *models.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone to avoid external modifications
	clone := *session
	s.sessions[session.SessionID] = &clone

	// Update user index
	s.sessionsByUser[session.UserID] = append(
		s.sessionsByUser[session.UserID],
		session.SessionID,
	)

	return nil
}

// Get retrieves a session by ID.
func (s *UserSessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	// Check if session has expired
	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}

	// Clone to avoid external modifications
	clone := *session
	return &clone, nil
}

// UpdateLastUsed updates the last_used_at timestamp for a session.
func (s *UserSessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrSessionNotFound
	}

	session.LastUsedAt = time.Now()
	return nil
}

// Delete deletes a session by ID (logout).
func (s *UserSessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrSessionNotFound
	}

	// Remove from user index
	s.removeFromUserIndex(session.UserID, sessionID)

	// Remove from main map
	delete(s.sessions, sessionID)

	return nil
}

// DeleteByUser deletes all sessions for a user (logout everywhere).
func (s *UserSessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionIDs, exists := s.sessionsByUser[userID]
	if !exists {
		return 0, nil
	}

	count := len(sessionIDs)

	// Delete all sessions
	for _, sessionID := range sessionIDs {
		delete(s.sessions, sessionID)
	}

	// Clear index
	delete(s.sessionsByUser, userID)

	return count, nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *UserSessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []uuid.UUID
	now := time.Now()

	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			toDelete = append(toDelete, id)
		}
	}

	for _, sessionID := range toDelete {
		session := s.sessions[sessionID]
		s.removeFromUserIndex(session.UserID, sessionID)
		delete(s.sessions, sessionID)
	}

	return len(toDelete), nil
}

// removeFromUserIndex removes a session ID from the user's session list.
func (s *UserSessionStore) removeFromUserIndex(userID, sessionID uuid.UUID) {
	sessionIDs := s.sessionsByUser[userID]
	for i, id := range sessionIDs {
		if id == sessionID {
			s.sessionsByUser[userID] = append(sessionIDs[:i], sessionIDs[i+1:]...)
			break
		}
	}
	// Clean up empty entries
	if len(s.sessionsByUser[userID]) == 0 {
		delete(s.sessionsByUser, userID)
	}
}
