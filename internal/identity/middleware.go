package identity

import (
	"context"
	"net/http"

	httpmw "github.com/vidstash/vidstash/internal/http"
)

// Credential carriers. Cookies serve browsers; the headers exist for
// non-browser and cross-origin clients that can't use cookies.
const (
	UserSessionCookie = "vs_session"
	AnonSessionCookie = "vs_anon"
	UserSessionHeader = "X-Vidstash-Session"
	AnonSessionHeader = "X-Vidstash-Anon"
)

// Anonymous sessions outlive the sweeper threshold on the client so a
// returning visitor presents their old token even if it was reclaimed.
const anonCookieMaxAge = 365 * 24 * 60 * 60

type contextKey string

const identityContextKey contextKey = "identity"

// FromContext extracts the resolved identity from the request context.
// Requests that didn't pass through Middleware resolve to None.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityContextKey).(Identity); ok {
		return id
	}
	return None()
}

// WithIdentity returns a context carrying the identity. Exposed for tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// Middleware resolves every request's identity and stores it in the request
// context. When the resolver mints a new anonymous session the token is
// handed back via Set-Cookie; dead registered-session cookies are cleared.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := extractCredentials(r)

			res := resolver.Resolve(r.Context(), creds)

			if res.ClearUserCredential {
				http.SetCookie(w, &http.Cookie{
					Name:     UserSessionCookie,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					HttpOnly: true,
					Secure:   true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if res.NewSession != nil {
				http.SetCookie(w, &http.Cookie{
					Name:     AnonSessionCookie,
					Value:    res.NewSession.SessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   true,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   anonCookieMaxAge,
				})
			}

			ctx := WithIdentity(r.Context(), res.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractCredentials pulls session tokens from cookies, falling back to
// headers for non-browser clients.
func extractCredentials(r *http.Request) Credentials {
	creds := Credentials{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}

	if cookie, err := r.Cookie(UserSessionCookie); err == nil {
		creds.UserSessionID = cookie.Value
	} else if token := r.Header.Get(UserSessionHeader); token != "" {
		creds.UserSessionID = token
	}

	if cookie, err := r.Cookie(AnonSessionCookie); err == nil {
		creds.AnonSessionID = cookie.Value
	} else if token := r.Header.Get(AnonSessionHeader); token != "" {
		creds.AnonSessionID = token
	}

	return creds
}

func clientIP(r *http.Request) string {
	if ip := httpmw.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return httpmw.ExtractClientIP(r)
}
