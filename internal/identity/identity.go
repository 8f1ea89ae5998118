// Package identity decides who is making a request: a registered user, an
// anonymous visitor session, or nobody. It issues anonymous session tokens,
// resolves request credentials against the session stores, and exposes the
// result to handlers as a tagged value.
package identity

import "github.com/google/uuid"

// Kind discriminates the identity union.
type Kind int

const (
	// KindNone means no identity could be established. Callers must deny or
	// degrade gracefully; it usually means the session store is unreachable.
	KindNone Kind = iota

	// KindAnonymous is a pre-registration visitor session.
	KindAnonymous

	// KindRegistered is a logged-in user.
	KindRegistered
)

// Identity is the effective identity of a request. Exactly one of UserID /
// SessionID is meaningful, selected by Kind.
type Identity struct {
	Kind      Kind
	UserID    uuid.UUID // valid when Kind == KindRegistered
	SessionID string    // valid when Kind == KindAnonymous
}

// Registered returns a registered-user identity.
func Registered(userID uuid.UUID) Identity {
	return Identity{Kind: KindRegistered, UserID: userID}
}

// Anonymous returns an anonymous-session identity.
func Anonymous(sessionID string) Identity {
	return Identity{Kind: KindAnonymous, SessionID: sessionID}
}

// None returns the zero identity.
func None() Identity {
	return Identity{Kind: KindNone}
}

// IsRegistered returns true for a registered-user identity.
func (i Identity) IsRegistered() bool { return i.Kind == KindRegistered }

// IsAnonymous returns true for an anonymous-session identity.
func (i Identity) IsAnonymous() bool { return i.Kind == KindAnonymous }

// IsNone returns true if no identity was established.
func (i Identity) IsNone() bool { return i.Kind == KindNone }
