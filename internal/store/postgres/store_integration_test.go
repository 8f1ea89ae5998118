//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vidstash/vidstash/internal/identity"
	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

func setupPostgresPool(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func createAnonSession(t *testing.T, ctx context.Context, sessions *AnonymousSessionStore) string {
	t.Helper()

	sessionID, err := identity.NewSessionID()
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, sessions.Create(ctx, &models.AnonymousSession{
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActiveAt: now,
		UserAgent:    "integration-test",
		IPAddress:    "203.0.113.1",
	}))
	return sessionID
}

func createUser(t *testing.T, ctx context.Context, users *UserStore) uuid.UUID {
	t.Helper()

	userID := uuid.Must(uuid.NewV7())
	now := time.Now()
	require.NoError(t, users.Create(ctx, &models.User{
		UserID:       userID,
		Email:        fmt.Sprintf("%s@example.com", userID),
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return userID
}

func TestIntegration_AnonymousSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresPool(t, ctx)
	defer cleanup()

	sessions := NewAnonymousSessionStore(pool)

	t.Run("create get touch", func(t *testing.T) {
		sessionID := createAnonSession(t, ctx, sessions)

		session, err := sessions.Get(ctx, sessionID)
		require.NoError(t, err)
		require.Equal(t, "integration-test", session.UserAgent)
		require.Zero(t, session.VideoCount)

		require.NoError(t, sessions.Touch(ctx, sessionID))

		touched, err := sessions.Get(ctx, sessionID)
		require.NoError(t, err)
		require.True(t, touched.LastActiveAt.After(session.LastActiveAt) || touched.LastActiveAt.Equal(session.LastActiveAt))
	})

	t.Run("duplicate create rejected", func(t *testing.T) {
		sessionID := createAnonSession(t, ctx, sessions)

		err := sessions.Create(ctx, &models.AnonymousSession{
			SessionID:    sessionID,
			CreatedAt:    time.Now(),
			LastActiveAt: time.Now(),
		})
		require.ErrorIs(t, err, store.ErrAnonymousSessionExists)
	})

	t.Run("list inactive before cutoff", func(t *testing.T) {
		sessionID := createAnonSession(t, ctx, sessions)

		inactive, err := sessions.ListInactiveBefore(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		for _, s := range inactive {
			require.NotEqual(t, sessionID, s.SessionID)
		}

		inactive, err = sessions.ListInactiveBefore(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)

		found := false
		for _, s := range inactive {
			if s.SessionID == sessionID {
				found = true
			}
		}
		require.True(t, found)
	})
}

func TestIntegration_VideoOwnership(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresPool(t, ctx)
	defer cleanup()

	sessions := NewAnonymousSessionStore(pool)
	users := NewUserStore(pool)
	videos := NewVideoStore(pool)

	t.Run("single owner constraint", func(t *testing.T) {
		sessionID := createAnonSession(t, ctx, sessions)
		userID := createUser(t, ctx, users)

		err := videos.Create(ctx, &models.Video{
			VideoID:        uuid.Must(uuid.NewV7()),
			URL:            "https://example.com/v",
			OwnerUserID:    &userID,
			OwnerSessionID: &sessionID,
			CreatedAt:      time.Now(),
		})
		require.ErrorIs(t, err, store.ErrInvalidOwner)

		err = videos.Create(ctx, &models.Video{
			VideoID:   uuid.Must(uuid.NewV7()),
			URL:       "https://example.com/v",
			CreatedAt: time.Now(),
		})
		require.ErrorIs(t, err, store.ErrInvalidOwner)
	})

	t.Run("transfer ownership is atomic and idempotent", func(t *testing.T) {
		sessionID := createAnonSession(t, ctx, sessions)
		userID := createUser(t, ctx, users)

		for i := 0; i < 3; i++ {
			require.NoError(t, videos.Create(ctx, &models.Video{
				VideoID:        uuid.Must(uuid.NewV7()),
				URL:            fmt.Sprintf("https://example.com/v/%d", i),
				OwnerSessionID: &sessionID,
				CreatedAt:      time.Now(),
			}))
		}

		moved, err := videos.TransferOwnership(ctx, sessionID, userID)
		require.NoError(t, err)
		require.Equal(t, 3, moved)

		moved, err = videos.TransferOwnership(ctx, sessionID, userID)
		require.NoError(t, err)
		require.Zero(t, moved)

		count, err := videos.CountBySession(ctx, sessionID)
		require.NoError(t, err)
		require.Zero(t, count)

		owned, err := videos.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, owned, 3)
	})

	t.Run("mark migrated retires the session", func(t *testing.T) {
		sessionID := createAnonSession(t, ctx, sessions)
		userID := createUser(t, ctx, users)

		require.NoError(t, sessions.SetVideoCount(ctx, sessionID, 2))
		require.NoError(t, sessions.MarkMigrated(ctx, sessionID, userID, time.Now()))

		session, err := sessions.Get(ctx, sessionID)
		require.NoError(t, err)
		require.True(t, session.IsMigrated())
		require.Equal(t, userID, *session.MigratedToUserID)
		require.Zero(t, session.VideoCount)
	})

	t.Run("delete dependents then video", func(t *testing.T) {
		sessionID := createAnonSession(t, ctx, sessions)
		videoID := uuid.Must(uuid.NewV7())
		require.NoError(t, videos.Create(ctx, &models.Video{
			VideoID:        videoID,
			URL:            "https://example.com/v",
			OwnerSessionID: &sessionID,
			CreatedAt:      time.Now(),
		}))

		_, err := pool.Exec(ctx,
			`INSERT INTO video_transcripts (transcript_id, video_id, content) VALUES ($1, $2, $3)`,
			uuid.Must(uuid.NewV7()), videoID, "hello")
		require.NoError(t, err)

		for _, kind := range store.VideoDependentKinds {
			require.NoError(t, videos.DeleteDependents(ctx, videoID, kind))
		}
		require.NoError(t, videos.Delete(ctx, videoID))

		_, err = videos.Get(ctx, videoID)
		require.ErrorIs(t, err, store.ErrVideoNotFound)
	})
}

func TestIntegration_UserSessions(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresPool(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)
	userSessions := NewUserSessionStore(pool)

	t.Run("expired session is rejected on read", func(t *testing.T) {
		userID := createUser(t, ctx, users)

		sessionID := uuid.Must(uuid.NewV7())
		now := time.Now()
		require.NoError(t, userSessions.Create(ctx, &models.UserSession{
			SessionID:  sessionID,
			UserID:     userID,
			CreatedAt:  now.Add(-2 * time.Hour),
			ExpiresAt:  now.Add(-time.Hour),
			LastUsedAt: now.Add(-2 * time.Hour),
		}))

		_, err := userSessions.Get(ctx, sessionID)
		require.ErrorIs(t, err, store.ErrSessionExpired)

		deleted, err := userSessions.DeleteExpired(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, deleted, 1)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		userID := createUser(t, ctx, users)

		existing, err := users.Get(ctx, userID)
		require.NoError(t, err)

		err = users.Create(ctx, &models.User{
			UserID:       uuid.Must(uuid.NewV7()),
			Email:        existing.Email,
			PasswordHash: "x",
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		})
		require.ErrorIs(t, err, store.ErrUserAlreadyExists)
	})
}
