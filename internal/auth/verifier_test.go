package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wedding-table/seating-server/internal/testutil"
)

const project = "wedding-table-test"

type memRevocations struct {
	mu   sync.Mutex
	at   map[string]time.Time
	fail error
}

func (m *memRevocations) ValidAfter(_ context.Context, subject string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return time.Time{}, m.fail
	}
	return m.at[subject], nil
}

func (m *memRevocations) Revoke(_ context.Context, subject string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.at == nil {
		m.at = map[string]time.Time{}
	}
	m.at[subject] = at
	return nil
}

func newVerifier(t *testing.T, rev RevocationStore) (*FirebaseVerifier, *testutil.TokenIssuer) {
	t.Helper()
	issuer := testutil.NewTokenIssuer(t, project)
	return NewFirebaseVerifier(project, NewCertificateSource(issuer.CertsURL(), nil), rev), issuer
}

func TestVerify_ValidToken(t *testing.T) {
	v, issuer := newVerifier(t, nil)
	claims, err := v.Verify(context.Background(), issuer.Token(t, "uid-1", "ann@example.com"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "uid-1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Email == nil || *claims.Email != "ann@example.com" {
		t.Errorf("email = %v", claims.Email)
	}
	if !claims.EmailVerified {
		t.Error("email_verified lost")
	}
	if claims.ExpiresAt.Before(time.Now()) || claims.IssuedAt.IsZero() || claims.AuthTime.IsZero() {
		t.Errorf("times = %+v", claims)
	}

	// no email claim leaves Email nil
	claims, err = v.Verify(context.Background(), issuer.Token(t, "uid-2", ""))
	if err != nil || claims.Email != nil {
		t.Errorf("no-email token: %+v, %v", claims, err)
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	v, issuer := newVerifier(t, nil)
	now := time.Now()
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": "https://securetoken.google.com/" + project,
			"aud": project,
			"sub": "uid-1",
			"iat": now.Add(-time.Minute).Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}
	with := func(k string, val any) string {
		c := base()
		if val == nil {
			delete(c, k)
		} else {
			c[k] = val
		}
		return issuer.Sign(t, c)
	}

	other := testutil.NewTokenIssuer(t, project)
	tests := map[string]string{
		"empty":          "",
		"garbage":        "not.a.jwt",
		"expired":        with("exp", now.Add(-10*time.Minute).Unix()),
		"no expiry":      with("exp", nil),
		"issued later":   with("iat", now.Add(time.Hour).Unix()),
		"wrong audience": with("aud", "another-project"),
		"wrong issuer":   with("iss", "https://accounts.google.com"),
		"empty subject":  with("sub", ""),
		"long subject":   with("sub", string(make([]byte, 129))),
		"foreign key":    other.Token(t, "uid-1", "ann@example.com"),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("err = %v, want ErrUnauthenticated", err)
			}
		})
	}

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, base())
	hs.Header["kid"] = issuer.KeyID
	signed, _ := hs.SignedString([]byte("secret"))
	if _, err := v.Verify(context.Background(), signed); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("HS256 token: err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerify_ToleratesClockSkew(t *testing.T) {
	v, issuer := newVerifier(t, nil)
	now := time.Now()
	sign := func(iat, exp time.Time) string {
		return issuer.Sign(t, jwt.MapClaims{
			"iss": "https://securetoken.google.com/" + project,
			"aud": project,
			"sub": "uid-1",
			"iat": iat.Unix(),
			"exp": exp.Unix(),
		})
	}

	// issuer clock two minutes ahead
	if _, err := v.Verify(context.Background(), sign(now.Add(2*time.Minute), now.Add(time.Hour))); err != nil {
		t.Errorf("iat 2m ahead: %v", err)
	}
	// expired one minute ago
	if _, err := v.Verify(context.Background(), sign(now.Add(-time.Hour), now.Add(-time.Minute))); err != nil {
		t.Errorf("exp 1m ago: %v", err)
	}
	if _, err := v.Verify(context.Background(), sign(now.Add(10*time.Minute), now.Add(time.Hour))); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("iat 10m ahead: err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerify_ProviderDownIsServiceUnavailable(t *testing.T) {
	v, issuer := newVerifier(t, nil)
	tok := issuer.Token(t, "uid-1", "ann@example.com")
	issuer.SetDown(true)

	_, err := v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Error("outage reported as invalid credential")
	}
}

func TestCertificateSource_CachesUntilMaxAge(t *testing.T) {
	v, issuer := newVerifier(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := v.Verify(ctx, issuer.Token(t, "uid-1", "ann@example.com")); err != nil {
			t.Fatal(err)
		}
	}
	if n := issuer.Fetches(); n != 1 {
		t.Errorf("certificate fetches = %d, want 1", n)
	}
}

func TestCertificateSource_SharedDetachedRefresh(t *testing.T) {
	issuer := testutil.NewTokenIssuer(t, project)
	issuer.SetDelay(300 * time.Millisecond)
	src := NewCertificateSource(issuer.CertsURL(), nil)

	// a caller that gives up returns at its own deadline and does not
	// cancel the fetch the others are waiting on
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := src.PublicKey(ctx, issuer.KeyID); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("impatient caller: err = %v, want ErrServiceUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("impatient caller waited %v for the fetch", elapsed)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := src.PublicKey(context.Background(), issuer.KeyID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("PublicKey: %v", err)
		}
	}
	if n := issuer.Fetches(); n != 1 {
		t.Errorf("certificate fetches = %d, want 1", n)
	}
}

func TestVerify_Revocation(t *testing.T) {
	rev := &memRevocations{}
	v, issuer := newVerifier(t, rev)
	ctx := context.Background()
	tok := issuer.Token(t, "uid-1", "ann@example.com")

	if _, err := v.Verify(ctx, tok); err != nil {
		t.Fatalf("before revoke: %v", err)
	}
	if err := rev.Revoke(ctx, "uid-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(ctx, tok); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("after revoke: err = %v, want ErrUnauthenticated", err)
	}
	// other subjects are unaffected
	if _, err := v.Verify(ctx, issuer.Token(t, "uid-2", "bo@example.com")); err != nil {
		t.Errorf("other subject: %v", err)
	}

	rev.fail = errors.New("connection refused")
	if _, err := v.Verify(ctx, issuer.Token(t, "uid-2", "bo@example.com")); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("store down: err = %v, want ErrServiceUnavailable", err)
	}
}

func TestMaxAge(t *testing.T) {
	tests := map[string]time.Duration{
		"public, max-age=19845, must-revalidate, no-transform": 19845 * time.Second,
		"max-age=60": time.Minute,
		"no-cache":   time.Hour,
		"":           time.Hour,
	}
	for header, want := range tests {
		if got := maxAge(header); got != want {
			t.Errorf("maxAge(%q) = %v, want %v", header, got, want)
		}
	}
}
