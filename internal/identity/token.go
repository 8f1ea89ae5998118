package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// ErrInvalidSessionFormat is returned when a token doesn't match the
// anonymous session identifier format.
var ErrInvalidSessionFormat = errors.New("invalid anonymous session identifier format")

const (
	sessionIDPrefix    = "anon"
	sessionIDRandBytes = 8
)

// NewSessionID generates a new anonymous session identifier of the form
//
//	anon_<unix-millis base36>_<base58 random suffix>
//
// The timestamp orders identifiers and the 64-bit random suffix makes
// collisions astronomically unlikely; the fixed shape allows cheap format
// validation before any store lookup.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	ts := strconv.FormatInt(nowMillis(), 36)

	return sessionIDPrefix + "_" + ts + "_" + base58.Encode(buf), nil
}

// ValidateSessionID checks that a token matches the identifier format.
// It never touches the store.
func ValidateSessionID(id string) error {
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != sessionIDPrefix {
		return ErrInvalidSessionFormat
	}

	ts, err := strconv.ParseInt(parts[1], 36, 64)
	if err != nil || ts <= 0 {
		return ErrInvalidSessionFormat
	}

	suffix, err := base58.Decode(parts[2])
	if err != nil || len(suffix) != sessionIDRandBytes {
		return ErrInvalidSessionFormat
	}

	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
