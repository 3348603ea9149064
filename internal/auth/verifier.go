package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeySource resolves a token's "kid" header to the RSA key that signed it.
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// FirebaseVerifier checks Firebase ID tokens the way the Admin SDK does:
// RS256 signature by a current Google key, issuer and audience bound to the
// project, live expiry, a non-empty uid of at most 128 characters, and no
// revocation after the token's sign-in time.  Time-based claims are checked
// with the same five minutes of clock skew the Admin SDK allows.
type FirebaseVerifier struct {
	projectID   string
	keys        KeySource
	revocations RevocationStore // optional
	now         func() time.Time
}

// NewFirebaseVerifier returns a verifier for projectID.  revocations may be
// nil, in which case revocation is not checked.
func NewFirebaseVerifier(projectID string, keys KeySource, revocations RevocationStore) *FirebaseVerifier {
	return &FirebaseVerifier{
		projectID:   projectID,
		keys:        keys,
		revocations: revocations,
		now:         time.Now,
	}
}

const clockSkew = 5 * time.Minute

type firebaseClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
}

// Verify implements Verifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrUnauthenticated)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(v.now),
	)

	var (
		fc     firebaseClaims
		keyErr error
	)
	_, err := parser.ParseWithClaims(rawToken, &fc, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			keyErr = fmt.Errorf("%w: token has no kid header", ErrUnauthenticated)
			return nil, keyErr
		}
		key, err := v.keys.PublicKey(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(keyErr, ErrServiceUnavailable) {
			return Claims{}, keyErr
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if fc.Subject == "" || len(fc.Subject) > 128 {
		return Claims{}, fmt.Errorf("%w: invalid subject", ErrUnauthenticated)
	}

	claims := Claims{
		Subject:       fc.Subject,
		EmailVerified: fc.EmailVerified,
		Name:          fc.Name,
		ExpiresAt:     fc.ExpiresAt.Time.UTC(),
	}
	if fc.IssuedAt != nil {
		claims.IssuedAt = fc.IssuedAt.Time.UTC()
	}
	claims.AuthTime = claims.IssuedAt
	if fc.AuthTime > 0 {
		claims.AuthTime = time.Unix(fc.AuthTime, 0).UTC()
	}
	if fc.Email != "" {
		email := fc.Email
		claims.Email = &email
	}

	if err := v.checkRevoked(ctx, claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (v *FirebaseVerifier) checkRevoked(ctx context.Context, claims Claims) error {
	if v.revocations == nil {
		return nil
	}
	validAfter, err := v.revocations.ValidAfter(ctx, claims.Subject)
	if err != nil {
		return fmt.Errorf("%w: revocation lookup: %v", ErrServiceUnavailable, err)
	}
	// second granularity, like tokensValidAfterTime in Firebase
	if !validAfter.IsZero() && claims.AuthTime.Unix() < validAfter.Unix() {
		return fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}
	return nil
}
