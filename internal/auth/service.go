// Package auth implements the registration and login flow. It owns password
// hashing and user-session minting, and is the place that decides when to
// invoke the migration engine; the engine itself knows nothing about auth.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidstash/vidstash/internal/identity"
	"github.com/vidstash/vidstash/internal/migrate"
	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

// Sentinel errors for the auth flow
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// DefaultSessionTTL is how long a user session lives without re-login.
const DefaultSessionTTL = 7 * 24 * time.Hour

const minPasswordLength = 8

// RequestMeta carries per-request audit fields into session creation.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// Service implements registration, login, logout and password changes.
type Service struct {
	users    store.UserStore
	sessions store.UserSessionStore
	migrator *migrate.Engine

	sessionTTL time.Duration
	logger     zerolog.Logger
}

// NewService creates the auth service. A sessionTTL <= 0 falls back to
// DefaultSessionTTL.
func NewService(users store.UserStore, sessions store.UserSessionStore, migrator *migrate.Engine, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		migrator:   migrator,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Register creates a new account and logs it in. If the caller was browsing
// anonymously, their session's videos are migrated into the new account;
// migration failure is logged but never blocks the registration itself.
func (s *Service) Register(ctx context.Context, email, password string, caller identity.Identity, meta RequestMeta) (*models.User, *models.UserSession, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate user ID: %w", err)
	}

	now := time.Now()
	user := &models.User{
		UserID:       userID,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Msg("Registered new user")

	s.migrateAnonymous(ctx, caller, userID)

	session, err := s.createSession(ctx, userID, meta)
	if err != nil {
		return nil, nil, err
	}

	return user, session, nil
}

// Login authenticates an existing account and mints a session. A live
// anonymous session on the same request is migrated as well, so a visitor who
// saved videos before logging back in doesn't lose them.
func (s *Service) Login(ctx context.Context, email, password string, caller identity.Identity, meta RequestMeta) (*models.User, *models.UserSession, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	s.migrateAnonymous(ctx, caller, user.UserID)

	session, err := s.createSession(ctx, user.UserID, meta)
	if err != nil {
		return nil, nil, err
	}

	return user, session, nil
}

// Logout destroys a single session. An unknown session is treated as already
// logged out.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password, stores a new hash, and
// invalidates every session for the user.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	invalidated, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Int("sessions_invalidated", invalidated).
		Msg("Password changed")

	return nil
}

// migrateAnonymous hands the caller's anonymous session, if any, to the
// migration engine. Best effort: the user keeps their new account even if
// their prior activity could not be transferred.
func (s *Service) migrateAnonymous(ctx context.Context, caller identity.Identity, userID uuid.UUID) {
	if !caller.IsAnonymous() {
		return
	}

	result, err := s.migrator.Migrate(ctx, caller.SessionID, userID)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("session_id", caller.SessionID).
			Str("user_id", userID.String()).
			Msg("Could not migrate anonymous session")
		return
	}

	if result.MigratedCount > 0 {
		s.logger.Info().
			Str("session_id", caller.SessionID).
			Str("user_id", userID.String()).
			Int("migrated_count", result.MigratedCount).
			Msg("Transferred anonymous videos to account")
	}
}

// createSession mints a server-side session; the UUID is the only thing the
// client ever holds.
func (s *Service) createSession(ctx context.Context, userID uuid.UUID, meta RequestMeta) (*models.UserSession, error) {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &models.UserSession{
		SessionID:  sessionID,
		UserID:     userID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
		LastUsedAt: now,
		UserAgent:  meta.UserAgent,
		IPAddress:  meta.IPAddress,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}
