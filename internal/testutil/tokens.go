package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs ID tokens the way Firebase does and publishes its
// certificate in the securetoken x509 format from an httptest server.
type TokenIssuer struct {
	ProjectID string
	KeyID     string

	key     *rsa.PrivateKey
	server  *httptest.Server
	fetches atomic.Int32
	down    atomic.Bool
	delay   atomic.Int64
}

// NewTokenIssuer starts the certificate server; it is shut down when the
// test ends.
func NewTokenIssuer(t *testing.T, projectID string) *TokenIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	ti := &TokenIssuer{ProjectID: projectID, KeyID: "test-key-1", key: key}
	ti.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ti.fetches.Add(1)
		if d := time.Duration(ti.delay.Load()); d > 0 {
			time.Sleep(d)
		}
		if ti.down.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{ti.KeyID: certPEM})
	}))
	t.Cleanup(ti.server.Close)
	return ti
}

// CertsURL is the endpoint a verifier should fetch certificates from.
func (ti *TokenIssuer) CertsURL() string { return ti.server.URL }

// Fetches reports how many times the certificates were requested.
func (ti *TokenIssuer) Fetches() int { return int(ti.fetches.Load()) }

// SetDelay makes the certificate endpoint wait d before answering.
func (ti *TokenIssuer) SetDelay(d time.Duration) { ti.delay.Store(int64(d)) }

// SetDown makes the certificate endpoint answer 503.
func (ti *TokenIssuer) SetDown(down bool) { ti.down.Store(down) }

// Token returns a valid token for subject, one hour long.
func (ti *TokenIssuer) Token(t *testing.T, subject, email string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            "https://securetoken.google.com/" + ti.ProjectID,
		"aud":            ti.ProjectID,
		"sub":            subject,
		"iat":            now.Add(-time.Minute).Unix(),
		"auth_time":      now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email_verified": true,
	}
	if email != "" {
		claims["email"] = email
	}
	return ti.Sign(t, claims)
}

// Sign signs arbitrary claims with the issuer's key and kid.
func (ti *TokenIssuer) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = ti.KeyID
	s, err := tok.SignedString(ti.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
