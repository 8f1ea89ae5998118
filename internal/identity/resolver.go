package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidstash/vidstash/internal/models"
	"github.com/vidstash/vidstash/internal/store"
	"github.com/vidstash/vidstash/internal/telemetry"
)

// Credentials are the raw tokens carried by a request, already extracted from
// cookies or headers by the transport layer.
type Credentials struct {
	UserSessionID string // registered-session token, empty if absent
	AnonSessionID string // anonymous-session token, empty if absent

	// Audit metadata recorded on newly minted anonymous sessions.
	UserAgent string
	IPAddress string
}

// Resolution is the outcome of resolving credentials.
type Resolution struct {
	Identity Identity

	// NewSession is set when a fresh anonymous session was minted for this
	// request. The transport layer is responsible for handing the token back
	// to the client.
	NewSession *models.AnonymousSession

	// ClearUserCredential is set when the registered-session token was
	// expired or unknown and should be removed from the client.
	ClearUserCredential bool
}

// Resolver turns request credentials into an effective identity. Every
// successful resolution refreshes the identity's activity timestamp, which is
// what keeps anonymous sessions alive against the expiry sweeper.
type Resolver struct {
	userSessions store.UserSessionStore
	anonSessions store.AnonymousSessionStore
	logger       zerolog.Logger
}

// NewResolver creates a resolver over the two session stores.
func NewResolver(userSessions store.UserSessionStore, anonSessions store.AnonymousSessionStore, logger zerolog.Logger) *Resolver {
	return &Resolver{
		userSessions: userSessions,
		anonSessions: anonSessions,
		logger:       logger,
	}
}

// Resolve produces the effective identity for a set of credentials.
//
// A valid registered session wins over an anonymous one. A request with no
// usable token gets a brand-new anonymous session. If the store is
// unreachable the resolver fails closed and returns KindNone rather than
// fabricating an identity.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) Resolution {
	var res Resolution

	if creds.UserSessionID != "" {
		identity, ok, unavailable := r.resolveRegistered(ctx, creds.UserSessionID)
		if unavailable {
			res.Identity = None()
			return res
		}
		if ok {
			res.Identity = identity
			return res
		}
		// Expired, unknown, or malformed token: tell the client to drop it
		// and fall through to anonymous resolution.
		res.ClearUserCredential = true
	}

	if creds.AnonSessionID != "" && ValidateSessionID(creds.AnonSessionID) == nil {
		session, err := r.anonSessions.Get(ctx, creds.AnonSessionID)
		switch {
		case err == nil:
			if err := r.anonSessions.Touch(ctx, session.SessionID); err != nil {
				r.logger.Warn().Err(err).Str("session_id", session.SessionID).Msg("Failed to touch anonymous session")
			}
			res.Identity = Anonymous(session.SessionID)
			return res
		case errors.Is(err, store.ErrAnonymousSessionNotFound):
			// Swept or never existed; mint a replacement below.
		default:
			r.logger.Error().Err(err).Msg("Anonymous session lookup failed, failing closed")
			res.Identity = None()
			return res
		}
	}

	session, err := r.createSession(ctx, creds)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to create anonymous session, failing closed")
		res.Identity = None()
		return res
	}

	res.Identity = Anonymous(session.SessionID)
	res.NewSession = session
	return res
}

// resolveRegistered checks a registered-session token. Returns the identity
// and ok=true on success; unavailable=true means the store itself failed.
func (r *Resolver) resolveRegistered(ctx context.Context, token string) (Identity, bool, bool) {
	sessionID, err := uuid.Parse(token)
	if err != nil {
		r.logger.Debug().Msg("Malformed registered session token")
		return None(), false, false
	}

	session, err := r.userSessions.Get(ctx, sessionID)
	switch {
	case err == nil:
		if err := r.userSessions.UpdateLastUsed(ctx, session.SessionID); err != nil {
			r.logger.Warn().Err(err).Str("session_id", session.SessionID.String()).Msg("Failed to update session last_used_at")
		}
		return Registered(session.UserID), true, false
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrSessionExpired):
		r.logger.Debug().Err(err).Str("session_id", sessionID.String()).Msg("Registered session rejected")
		return None(), false, false
	default:
		r.logger.Error().Err(err).Msg("Registered session lookup failed, failing closed")
		return None(), false, true
	}
}

// createSession mints and persists a new anonymous session. A token collision
// is rejected by the store, never overwritten; one retry with a fresh token
// covers the astronomically unlikely case.
func (r *Resolver) createSession(ctx context.Context, creds Credentials) (*models.AnonymousSession, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		sessionID, err := NewSessionID()
		if err != nil {
			return nil, err
		}

		now := time.Now()
		session := &models.AnonymousSession{
			SessionID:    sessionID,
			CreatedAt:    now,
			LastActiveAt: now,
			VideoCount:   0,
			UserAgent:    creds.UserAgent,
			IPAddress:    creds.IPAddress,
		}

		err = r.anonSessions.Create(ctx, session)
		if err == nil {
			telemetry.GetMetrics().AnonymousSessionsCreatedTotal.Add(ctx, 1)
			r.logger.Debug().Str("session_id", sessionID).Msg("Created anonymous session")
			return session, nil
		}
		if !errors.Is(err, store.ErrAnonymousSessionExists) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}
