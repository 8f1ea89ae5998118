package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

func sessionVideo(sessionID string) *models.Video {
	return &models.Video{
		VideoID:        uuid.Must(uuid.NewV7()),
		URL:            "https://example.com/v",
		OwnerSessionID: &sessionID,
		CreatedAt:      time.Now(),
	}
}

func TestVideoStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create enforces exactly one owner", func(t *testing.T) {
		st := NewVideoStore()
		sessionID := "anon_a_1"
		userID := uuid.Must(uuid.NewV7())

		// No owner at all.
		err := st.Create(ctx, &models.Video{VideoID: uuid.Must(uuid.NewV7()), URL: "https://example.com"})
		require.ErrorIs(t, err, store.ErrInvalidOwner)

		// Both owners at once.
		err = st.Create(ctx, &models.Video{
			VideoID:        uuid.Must(uuid.NewV7()),
			URL:            "https://example.com",
			OwnerUserID:    &userID,
			OwnerSessionID: &sessionID,
		})
		require.ErrorIs(t, err, store.ErrInvalidOwner)

		require.NoError(t, st.Create(ctx, sessionVideo(sessionID)))
	})

	t.Run("count by session matches list", func(t *testing.T) {
		st := NewVideoStore()
		for i := 0; i < 3; i++ {
			require.NoError(t, st.Create(ctx, sessionVideo("anon_a_1")))
		}
		require.NoError(t, st.Create(ctx, sessionVideo("anon_b_1")))

		count, err := st.CountBySession(ctx, "anon_a_1")
		require.NoError(t, err)
		require.Equal(t, 3, count)

		list, err := st.ListBySession(ctx, "anon_a_1")
		require.NoError(t, err)
		require.Len(t, list, 3)
	})

	t.Run("transfer ownership moves the whole set once", func(t *testing.T) {
		st := NewVideoStore()
		for i := 0; i < 2; i++ {
			require.NoError(t, st.Create(ctx, sessionVideo("anon_a_1")))
		}
		userID := uuid.Must(uuid.NewV7())

		moved, err := st.TransferOwnership(ctx, "anon_a_1", userID)
		require.NoError(t, err)
		require.Equal(t, 2, moved)

		// Nothing left to move on a re-run.
		moved, err = st.TransferOwnership(ctx, "anon_a_1", userID)
		require.NoError(t, err)
		require.Zero(t, moved)

		owned, err := st.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, owned, 2)
		for _, v := range owned {
			require.Nil(t, v.OwnerSessionID)
		}
	})

	t.Run("delete dependents by kind", func(t *testing.T) {
		st := NewVideoStore()
		video := sessionVideo("anon_a_1")
		require.NoError(t, st.Create(ctx, video))

		st.AddDependent(video.VideoID, store.DependentConversations, "conv-1")
		st.AddDependent(video.VideoID, store.DependentConversations, "conv-2")
		st.AddDependent(video.VideoID, store.DependentTranscripts, "tr-1")

		require.NoError(t, st.DeleteDependents(ctx, video.VideoID, store.DependentConversations))
		require.Zero(t, st.DependentCount(video.VideoID, store.DependentConversations))
		require.Equal(t, 1, st.DependentCount(video.VideoID, store.DependentTranscripts))
	})

	t.Run("delete missing video", func(t *testing.T) {
		st := NewVideoStore()
		require.ErrorIs(t, st.Delete(ctx, uuid.Must(uuid.NewV7())), store.ErrVideoNotFound)
	})
}
