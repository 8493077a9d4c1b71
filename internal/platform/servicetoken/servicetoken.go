// Package servicetoken signs and verifies the short-lived HS256 tokens that
// authenticate proofbridge to the verification and issuance services.
package servicetoken

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTTL = 5 * time.Minute

	// refreshBefore renews a cached token this long before it expires.
	refreshBefore = 30 * time.Second
)

// Audiences and scopes of the upstream services.
const (
	AudienceVerifier = "verification-service"
	AudienceIssuer   = "issuance-service"

	ScopeProofRequest    = "proof:request"
	ScopeCredentialIssue = "credential:issue"
)

// Claims are the service token claims.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Signer mints tokens for one audience and caches the current one.
type Signer struct {
	key      []byte
	issuer   string
	audience string
	scope    string
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	current string
	expires time.Time
}

// Option configures a Signer.
type Option func(*Signer)

func WithTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithScope(scope string) Option {
	return func(s *Signer) {
		s.scope = scope
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a signer for tokens addressed to audience.
func NewSigner(key, issuer, audience string, opts ...Option) (*Signer, error) {
	if key == "" {
		return nil, errors.New("service signing key is required")
	}
	s := &Signer{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns a valid token, minting a new one when the cached token is
// close to expiry.
func (s *Signer) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.current != "" && now.Add(refreshBefore).Before(s.expires) {
		return s.current, nil
	}

	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: s.scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	s.current, s.expires = signed, expires
	return signed, nil
}

// Verify parses and validates a token addressed to audience.
func Verify(tokenString, key, audience string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(key), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid service token: %w", err)
	}
	return claims, nil
}
