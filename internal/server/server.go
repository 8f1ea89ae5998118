// Package server is the thin JSON surface over the identity, quota and
// migration subsystem. Handlers never reach into the stores for identity
// decisions; everything flows through the resolved Identity in the request
// context.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vidstash/vidstash/internal/auth"
	httpmw "github.com/vidstash/vidstash/internal/http"
	"github.com/vidstash/vidstash/internal/identity"
	"github.com/vidstash/vidstash/internal/logger"
	"github.com/vidstash/vidstash/internal/quota"
	"github.com/vidstash/vidstash/internal/store"
)

// Server wires the HTTP handlers to the subsystem components.
type Server struct {
	resolver *identity.Resolver
	auth     *auth.Service
	quota    *quota.Enforcer
	videos   store.VideoStore
	logger   zerolog.Logger
}

// New creates a new server with the given components.
func New(resolver *identity.Resolver, authService *auth.Service, enforcer *quota.Enforcer, videos store.VideoStore, log zerolog.Logger) *Server {
	return &Server{
		resolver: resolver,
		auth:     authService,
		quota:    enforcer,
		videos:   videos,
		logger:   log,
	}
}

// Handler returns the full handler chain: request logging, client IP
// capture, identity resolution, then routing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/videos", s.handleSaveVideo)
	mux.HandleFunc("GET /api/videos", s.handleListVideos)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("POST /api/password", s.handleChangePassword)
	mux.HandleFunc("GET /api/me", s.handleMe)

	handler := identity.Middleware(s.resolver)(mux)
	handler = httpmw.ClientIPMiddleware()(handler)
	return logger.NewRequestLogger(s.logger)(handler)
}

type errorResponse struct {
	Error string `json:"error"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// requireIdentity rejects requests for which no identity could be
// established. Identity resolution fails closed, so a request that
// arrives with no identity means the session store is unreachable.
func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id := identity.FromContext(r.Context())
	if id.IsNone() {
		s.writeError(w, http.StatusServiceUnavailable, "service_unavailable")
		return id, false
	}
	return id, true
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		UserAgent: r.UserAgent(),
		IPAddress: httpmw.ClientIPFromContext(r.Context()),
	}
}
