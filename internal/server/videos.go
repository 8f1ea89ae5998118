package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

type saveVideoRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type videoResponse struct {
	VideoID   string    `json:"video_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func toVideoResponse(v *models.Video) videoResponse {
	return videoResponse{
		VideoID:   v.VideoID.String(),
		URL:       v.URL,
		Title:     v.Title,
		CreatedAt: v.CreatedAt,
	}
}

type saveVideoResponse struct {
	videoResponse
	VideoCount int `json:"video_count,omitempty"`
}

func (s *Server) handleSaveVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	var req saveVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url_required")
		return
	}

	video := &models.Video{
		VideoID:   uuid.Must(uuid.NewV7()),
		URL:       req.URL,
		Title:     strings.TrimSpace(req.Title),
		CreatedAt: time.Now(),
	}

	if id.IsAnonymous() {
		reached, err := s.quota.HasReachedLimit(r.Context(), id.SessionID)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", id.SessionID).Msg("Failed to check quota")
			s.writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if reached {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "limit_reached", Limit: s.quota.Limit()})
			return
		}
		sessionID := id.SessionID
		video.OwnerSessionID = &sessionID
	} else {
		userID := id.UserID
		video.OwnerUserID = &userID
	}

	if err := s.videos.Create(r.Context(), video); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create video")
		s.writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	resp := saveVideoResponse{videoResponse: toVideoResponse(video)}
	if id.IsAnonymous() {
		count, err := s.quota.IncrementOnCreate(r.Context(), id.SessionID)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", id.SessionID).Msg("Failed to update video count")
			s.writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		resp.VideoCount = count
	}

	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	var (
		videos []*models.Video
		err    error
	)
	if id.IsAnonymous() {
		videos, err = s.videos.ListBySession(r.Context(), id.SessionID)
	} else {
		videos, err = s.videos.ListByUser(r.Context(), id.UserID)
	}
	if err != nil && !errors.Is(err, store.ErrVideoNotFound) {
		s.logger.Error().Err(err).Msg("Failed to list videos")
		s.writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	resp := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, toVideoResponse(v))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"videos": resp})
}
