package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/auth"
	"github.com/vidstash/vidstash/internal/identity"
	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		UserID:    u.UserID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	user, session, err := s.auth.Register(r.Context(), req.Email, req.Password, id, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			s.writeError(w, http.StatusBadRequest, "invalid_email")
		case errors.Is(err, auth.ErrWeakPassword):
			s.writeError(w, http.StatusBadRequest, "weak_password")
		case errors.Is(err, store.ErrUserAlreadyExists):
			s.writeError(w, http.StatusConflict, "email_taken")
		default:
			s.logger.Error().Err(err).Msg("Failed to register user")
			s.writeError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	s.setSessionCookie(w, session)
	s.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	user, session, err := s.auth.Login(r.Context(), req.Email, req.Password, id, requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to log in user")
		s.writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	s.setSessionCookie(w, session)
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := s.sessionIDFromRequest(r); ok {
		if err := s.auth.Logout(r.Context(), sessionID); err != nil {
			s.logger.Error().Err(err).Msg("Failed to log out")
			s.writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
	}

	s.clearSessionCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	if !id.IsRegistered() {
		s.writeError(w, http.StatusUnauthorized, "login_required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	err := s.auth.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.writeError(w, http.StatusUnauthorized, "invalid_credentials")
		case errors.Is(err, auth.ErrWeakPassword):
			s.writeError(w, http.StatusBadRequest, "weak_password")
		default:
			s.logger.Error().Err(err).Msg("Failed to change password")
			s.writeError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	// All sessions were invalidated, including the one used for this request.
	s.clearSessionCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type meResponse struct {
	Kind       string `json:"kind"`
	UserID     string `json:"user_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	VideoCount *int   `json:"video_count,omitempty"`
	VideoLimit *int   `json:"video_limit,omitempty"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	if id.IsRegistered() {
		s.writeJSON(w, http.StatusOK, meResponse{Kind: "registered", UserID: id.UserID.String()})
		return
	}

	count, err := s.videos.CountBySession(r.Context(), id.SessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id.SessionID).Msg("Failed to count videos")
		s.writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	limit := s.quota.Limit()

	s.writeJSON(w, http.StatusOK, meResponse{
		Kind:       "anonymous",
		SessionID:  id.SessionID,
		VideoCount: &count,
		VideoLimit: &limit,
	})
}

// sessionIDFromRequest pulls the raw registered-session credential off the
// request. Logout operates on the credential, not the resolved identity, so
// an expired session can still be logged out cleanly.
func (s *Server) sessionIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	var raw string
	if cookie, err := r.Cookie(identity.UserSessionCookie); err == nil {
		raw = cookie.Value
	} else if token := r.Header.Get(identity.UserSessionHeader); token != "" {
		raw = token
	}
	if raw == "" {
		return uuid.Nil, false
	}
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return sessionID, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, session *models.UserSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.UserSessionCookie,
		Value:    session.SessionID.String(),
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.UserSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
