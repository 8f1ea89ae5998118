package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vidstash/vidstash/internal/auth"
	"github.com/vidstash/vidstash/internal/identity"
	"github.com/vidstash/vidstash/internal/migrate"
	"github.com/vidstash/vidstash/internal/quota"
	memorystore "github.com/vidstash/vidstash/internal/store/memory"
)

// client carries cookies between requests against an in-memory server, the
// way a browser would.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func newTestServer(t *testing.T) *client {
	t.Helper()

	users := memorystore.NewUserStore()
	userSessions := memorystore.NewUserSessionStore()
	anonSessions := memorystore.NewAnonymousSessionStore()
	videos := memorystore.NewVideoStore()

	log := zerolog.Nop()
	engine := migrate.NewEngine(anonSessions, users, videos, log)
	srv := New(
		identity.NewResolver(userSessions, anonSessions, log),
		auth.NewService(users, userSessions, engine, 0, log),
		quota.NewEnforcer(anonSessions, videos, 3, log),
		videos,
		log,
	)

	return &client{t: t, handler: srv.Handler()}
}

func (c *client) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	resp := rec.Result()

	// Retain new cookies, drop cleared ones.
	for _, cookie := range resp.Cookies() {
		c.setCookie(cookie)
	}

	var decoded map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func (c *client) setCookie(cookie *http.Cookie) {
	for i, existing := range c.cookies {
		if existing.Name == cookie.Name {
			if cookie.MaxAge < 0 {
				c.cookies = append(c.cookies[:i], c.cookies[i+1:]...)
			} else {
				c.cookies[i] = cookie
			}
			return
		}
	}
	if cookie.MaxAge >= 0 {
		c.cookies = append(c.cookies, cookie)
	}
}

func TestSaveVideoQuota(t *testing.T) {
	c := newTestServer(t)

	// Anonymous visitor can save up to the limit.
	for i := 0; i < 3; i++ {
		resp, body := c.do(http.MethodPost, "/api/videos", map[string]string{
			"url": fmt.Sprintf("https://example.com/v/%d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, float64(i+1), body["video_count"])
	}

	// The fourth save is rejected.
	resp, body := c.do(http.MethodPost, "/api/videos", map[string]string{
		"url": "https://example.com/v/4",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "limit_reached", body["error"])
	require.Equal(t, float64(3), body["limit"])

	// The rejected save left nothing behind.
	resp, body = c.do(http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["videos"], 3)
}

func TestRegisterMigratesVideos(t *testing.T) {
	c := newTestServer(t)

	resp, _ := c.do(http.MethodPost, "/api/videos", map[string]string{"url": "https://example.com/v/1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/api/register", map[string]string{
		"email":    "saver@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Now registered, with the saved video carried over and no quota.
	resp, body := c.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "registered", body["kind"])

	resp, body = c.do(http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["videos"], 1)

	for i := 0; i < 5; i++ {
		resp, _ = c.do(http.MethodPost, "/api/videos", map[string]string{
			"url": fmt.Sprintf("https://example.com/v/more-%d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
}

func TestLoginAndLogout(t *testing.T) {
	c := newTestServer(t)

	resp, _ := c.do(http.MethodPost, "/api/register", map[string]string{
		"email":    "user@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Back to anonymous.
	resp, body := c.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "anonymous", body["kind"])

	// Wrong password rejected, right password accepted.
	resp, _ = c.do(http.MethodPost, "/api/login", map[string]string{
		"email":    "user@example.com",
		"password": "wrong horse",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/api/login", map[string]string{
		"email":    "user@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = c.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "registered", body["kind"])
}

func TestMeAnonymous(t *testing.T) {
	c := newTestServer(t)

	resp, body := c.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "anonymous", body["kind"])
	require.Equal(t, float64(0), body["video_count"])
	require.Equal(t, float64(3), body["video_limit"])
	require.NotEmpty(t, body["session_id"])
}

func TestSaveVideoValidation(t *testing.T) {
	c := newTestServer(t)

	resp, body := c.do(http.MethodPost, "/api/videos", map[string]string{"url": "   "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "url_required", body["error"])
}
