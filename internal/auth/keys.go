package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CertificateSource fetches the x509 certificates Google publishes for
// Firebase ID tokens and caches the parsed RSA keys until the response's
// Cache-Control max-age runs out.  Concurrent callers share one fetch,
// which runs without holding the cache lock and outlives any single
// caller's context.
type CertificateSource struct {
	url    string
	client *http.Client
	now    func() time.Time
	fetch  singleflight.Group

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

// NewCertificateSource returns a source reading from url.  A nil client
// gets a 5 second timeout.
func NewCertificateSource(url string, client *http.Client) *CertificateSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &CertificateSource{url: url, client: client, now: time.Now}
}

// PublicKey returns the key for kid.  Failing to reach the endpoint yields
// ErrServiceUnavailable; an unknown kid yields ErrUnauthenticated.
func (s *CertificateSource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, fresh := s.cached()
	if !fresh {
		// detached: a caller that goes away must not fail the shared fetch
		res := s.fetch.DoChan("certs", func() (any, error) {
			return s.refresh(context.WithoutCancel(ctx))
		})
		select {
		case r := <-res:
			if r.Err != nil {
				return nil, r.Err
			}
			keys = r.Val.(map[string]*rsa.PublicKey)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for certificates: %v", ErrServiceUnavailable, ctx.Err())
		}
	}
	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown signing key %q", ErrUnauthenticated, kid)
	}
	return key, nil
}

func (s *CertificateSource) cached() (map[string]*rsa.PublicKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys, s.keys != nil && s.now().Before(s.expires)
}

// refresh downloads and parses the certificates, then swaps them into the
// cache.  The lock is only taken for the swap.
func (s *CertificateSource) refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch certificates: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: certificates endpoint returned %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, fmt.Errorf("%w: decode certificates: %v", ErrServiceUnavailable, err)
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, certPEM := range certs {
		key, err := parseCertificateKey(certPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: certificate %q: %v", ErrServiceUnavailable, kid, err)
		}
		keys[kid] = key
	}

	s.mu.Lock()
	s.keys = keys
	s.expires = s.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	s.mu.Unlock()
	return keys, nil
}

func parseCertificateKey(certPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate key is %T, want RSA", cert.PublicKey)
	}
	return key, nil
}

// maxAge reads max-age from a Cache-Control header.  Without one the keys
// are kept for an hour.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Hour
}
