package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
	memorystore "github.com/vidstash/vidstash/internal/store/memory"
)

func TestResolverAnonymous(t *testing.T) {
	ctx := context.Background()

	t.Run("no credentials mints a new session", func(t *testing.T) {
		anonSessions := memorystore.NewAnonymousSessionStore()
		r := NewResolver(memorystore.NewUserSessionStore(), anonSessions, zerolog.Nop())

		res := r.Resolve(ctx, Credentials{UserAgent: "test-agent", IPAddress: "203.0.113.1"})
		require.True(t, res.Identity.IsAnonymous())
		require.NotNil(t, res.NewSession)
		require.NoError(t, ValidateSessionID(res.Identity.SessionID))

		// The session was persisted with the request metadata.
		stored, err := anonSessions.Get(ctx, res.Identity.SessionID)
		require.NoError(t, err)
		require.Equal(t, "test-agent", stored.UserAgent)
		require.Equal(t, "203.0.113.1", stored.IPAddress)
		require.Equal(t, 0, stored.VideoCount)
	})

	t.Run("known session is reused and touched", func(t *testing.T) {
		anonSessions := memorystore.NewAnonymousSessionStore()
		r := NewResolver(memorystore.NewUserSessionStore(), anonSessions, zerolog.Nop())

		sessionID, err := NewSessionID()
		require.NoError(t, err)
		created := time.Now().Add(-48 * time.Hour)
		require.NoError(t, anonSessions.Create(ctx, &models.AnonymousSession{
			SessionID:    sessionID,
			CreatedAt:    created,
			LastActiveAt: created,
		}))

		res := r.Resolve(ctx, Credentials{AnonSessionID: sessionID})
		require.True(t, res.Identity.IsAnonymous())
		require.Equal(t, sessionID, res.Identity.SessionID)
		require.Nil(t, res.NewSession)

		stored, err := anonSessions.Get(ctx, sessionID)
		require.NoError(t, err)
		require.True(t, stored.LastActiveAt.After(created))
	})

	t.Run("unknown session token gets a replacement", func(t *testing.T) {
		r := NewResolver(memorystore.NewUserSessionStore(), memorystore.NewAnonymousSessionStore(), zerolog.Nop())

		swept, err := NewSessionID()
		require.NoError(t, err)

		res := r.Resolve(ctx, Credentials{AnonSessionID: swept})
		require.True(t, res.Identity.IsAnonymous())
		require.NotEqual(t, swept, res.Identity.SessionID)
		require.NotNil(t, res.NewSession)
	})

	t.Run("malformed token gets a replacement", func(t *testing.T) {
		r := NewResolver(memorystore.NewUserSessionStore(), memorystore.NewAnonymousSessionStore(), zerolog.Nop())

		res := r.Resolve(ctx, Credentials{AnonSessionID: "not-a-session-token"})
		require.True(t, res.Identity.IsAnonymous())
		require.NotNil(t, res.NewSession)
	})
}

func TestResolverRegistered(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session wins over anonymous", func(t *testing.T) {
		userSessions := memorystore.NewUserSessionStore()
		anonSessions := memorystore.NewAnonymousSessionStore()
		r := NewResolver(userSessions, anonSessions, zerolog.Nop())

		userID := uuid.Must(uuid.NewV7())
		sessionID := uuid.Must(uuid.NewV7())
		now := time.Now()
		require.NoError(t, userSessions.Create(ctx, &models.UserSession{
			SessionID:  sessionID,
			UserID:     userID,
			CreatedAt:  now,
			ExpiresAt:  now.Add(time.Hour),
			LastUsedAt: now,
		}))

		anonID, err := NewSessionID()
		require.NoError(t, err)
		require.NoError(t, anonSessions.Create(ctx, &models.AnonymousSession{
			SessionID:    anonID,
			CreatedAt:    now,
			LastActiveAt: now,
		}))

		res := r.Resolve(ctx, Credentials{
			UserSessionID: sessionID.String(),
			AnonSessionID: anonID,
		})
		require.True(t, res.Identity.IsRegistered())
		require.Equal(t, userID, res.Identity.UserID)
		require.False(t, res.ClearUserCredential)
	})

	t.Run("expired session falls through to anonymous and clears credential", func(t *testing.T) {
		userSessions := memorystore.NewUserSessionStore()
		r := NewResolver(userSessions, memorystore.NewAnonymousSessionStore(), zerolog.Nop())

		sessionID := uuid.Must(uuid.NewV7())
		now := time.Now()
		require.NoError(t, userSessions.Create(ctx, &models.UserSession{
			SessionID:  sessionID,
			UserID:     uuid.Must(uuid.NewV7()),
			CreatedAt:  now.Add(-2 * time.Hour),
			ExpiresAt:  now.Add(-time.Hour),
			LastUsedAt: now.Add(-2 * time.Hour),
		}))

		res := r.Resolve(ctx, Credentials{UserSessionID: sessionID.String()})
		require.True(t, res.Identity.IsAnonymous())
		require.True(t, res.ClearUserCredential)
		require.NotNil(t, res.NewSession)
	})

	t.Run("unknown session falls through to anonymous", func(t *testing.T) {
		r := NewResolver(memorystore.NewUserSessionStore(), memorystore.NewAnonymousSessionStore(), zerolog.Nop())

		res := r.Resolve(ctx, Credentials{UserSessionID: uuid.Must(uuid.NewV7()).String()})
		require.True(t, res.Identity.IsAnonymous())
		require.True(t, res.ClearUserCredential)
	})

	t.Run("malformed token falls through without store lookup", func(t *testing.T) {
		r := NewResolver(memorystore.NewUserSessionStore(), memorystore.NewAnonymousSessionStore(), zerolog.Nop())

		res := r.Resolve(ctx, Credentials{UserSessionID: "garbage"})
		require.True(t, res.Identity.IsAnonymous())
		require.True(t, res.ClearUserCredential)
	})
}

func TestResolverFailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("user session store unavailable", func(t *testing.T) {
		r := NewResolver(failingUserSessionStore{}, memorystore.NewAnonymousSessionStore(), zerolog.Nop())

		res := r.Resolve(ctx, Credentials{UserSessionID: uuid.Must(uuid.NewV7()).String()})
		require.True(t, res.Identity.IsNone())
		require.Nil(t, res.NewSession)
	})

	t.Run("anonymous session store unavailable", func(t *testing.T) {
		r := NewResolver(memorystore.NewUserSessionStore(), failingAnonymousSessionStore{}, zerolog.Nop())

		res := r.Resolve(ctx, Credentials{})
		require.True(t, res.Identity.IsNone())
	})
}

var errStoreDown = errors.New("store unavailable")

type failingUserSessionStore struct{}

func (failingUserSessionStore) Create(context.Context, *models.UserSession) error { return errStoreDown }
func (failingUserSessionStore) Get(context.Context, uuid.UUID) (*models.UserSession, error) {
	return nil, errStoreDown
}
func (failingUserSessionStore) UpdateLastUsed(context.Context, uuid.UUID) error { return errStoreDown }
func (failingUserSessionStore) Delete(context.Context, uuid.UUID) error         { return errStoreDown }
func (failingUserSessionStore) DeleteByUser(context.Context, uuid.UUID) (int, error) {
	return 0, errStoreDown
}
func (failingUserSessionStore) DeleteExpired(context.Context) (int, error) { return 0, errStoreDown }

type failingAnonymousSessionStore struct{}

func (failingAnonymousSessionStore) Create(context.Context, *models.AnonymousSession) error {
	return errStoreDown
}
func (failingAnonymousSessionStore) Get(context.Context, string) (*models.AnonymousSession, error) {
	return nil, errStoreDown
}
func (failingAnonymousSessionStore) Touch(context.Context, string) error { return errStoreDown }
func (failingAnonymousSessionStore) SetVideoCount(context.Context, string, int) error {
	return errStoreDown
}
func (failingAnonymousSessionStore) MarkMigrated(context.Context, string, uuid.UUID, time.Time) error {
	return errStoreDown
}
func (failingAnonymousSessionStore) ListInactiveBefore(context.Context, time.Time) ([]*models.AnonymousSession, error) {
	return nil, errStoreDown
}
func (failingAnonymousSessionStore) Delete(context.Context, string) error { return errStoreDown }

var (
	_ store.UserSessionStore      = failingUserSessionStore{}
	_ store.AnonymousSessionStore = failingAnonymousSessionStore{}
)
