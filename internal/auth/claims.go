// Package auth verifies Firebase ID tokens and turns them into Claims.
// Nothing in this package touches the application database.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnauthenticated covers a missing, malformed, expired, revoked or
	// otherwise invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrServiceUnavailable is returned when the identity provider (or the
	// revocation store) cannot be reached, so callers can retry instead of
	// rejecting the user.
	ErrServiceUnavailable = errors.New("identity provider unavailable")
)

// Claims is the verified identity assertion carried by an ID token.  It is
// only ever built by a Verifier from a token that passed every check.
type Claims struct {
	Subject       string    // Firebase uid
	Email         *string   // nil when the account has no email
	EmailVerified bool
	Name          string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	AuthTime      time.Time // when the user signed in; equals IssuedAt if absent
}

// Verifier exchanges an opaque bearer credential for verified claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
}
