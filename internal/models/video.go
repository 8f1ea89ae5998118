package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is a saved video. Exactly one of OwnerUserID / OwnerSessionID is set
// while the row exists: ownership is a disjoint union, enforced by a CHECK
// constraint in PostgreSQL and by Validate here for the in-memory store.
type Video struct {
	VideoID uuid.UUID // UUIDv7
	URL     string
	Title   string

	OwnerUserID    *uuid.UUID // set after migration or for registered saves
	OwnerSessionID *string    // set for anonymous saves

	CreatedAt time.Time
}

// OwnedBySession returns true if the video is owned by the given anonymous session.
func (v *Video) OwnedBySession(sessionID string) bool {
	return v.OwnerSessionID != nil && *v.OwnerSessionID == sessionID
}

// OwnedByUser returns true if the video is owned by the given user.
func (v *Video) OwnedByUser(userID uuid.UUID) bool {
	return v.OwnerUserID != nil && *v.OwnerUserID == userID
}

// ValidateOwner checks the disjoint-union ownership invariant.
func (v *Video) ValidateOwner() bool {
	return (v.OwnerUserID != nil) != (v.OwnerSessionID != nil)
}
