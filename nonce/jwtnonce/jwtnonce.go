// Package jwtnonce issues and verifies anti-forgery tokens as signed JWTs,
// for deployments where the issuing and verifying services share neither
// memory nor key-derivation state. The nonce handle rides in a private
// claim, the lifetime in exp, and the caller subject in sub.
//
// Symmetric setups sign and verify with one HS256 secret via New.
// Asymmetric setups verify against a JWKS endpoint via NewVerifier and
// leave issuing to the service that owns the private key.
package jwtnonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ajaxmux/ajaxmux/nonce"
	"github.com/ajaxmux/ajaxmux/nonce/replay"
)

// DefaultLifetime bounds token validity when no override is configured.
const DefaultLifetime = 24 * time.Hour

// DefaultLeeway absorbs clock skew between issuer and verifier.
const DefaultLeeway = 60 * time.Second

// nonceClaims is the wire layout of a nonce JWT.
type nonceClaims struct {
	Handle string `json:"handle"`
	jwt.RegisteredClaims
}

// Authority issues and verifies JWT nonces. It implements nonce.Issuer
// and nonce.Verifier; a verify-only Authority (NewVerifier) fails Issue.
type Authority struct {
	method    jwt.SigningMethod
	signKey   any
	keyfunc   jwt.Keyfunc
	validAlgs []string

	issuer   string
	audience string
	lifetime time.Duration
	leeway   time.Duration
	now      func() time.Time
	guard    replay.Guard
}

var (
	_ nonce.Issuer   = (*Authority)(nil)
	_ nonce.Verifier = (*Authority)(nil)
)

// Option configures an Authority.
type Option func(*Authority)

// WithIssuer stamps iss on issued tokens and requires it on verification.
func WithIssuer(iss string) Option {
	return func(a *Authority) { a.issuer = iss }
}

// WithAudience stamps aud on issued tokens and requires it on
// verification.
func WithAudience(aud string) Option {
	return func(a *Authority) { a.audience = aud }
}

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.lifetime = d
		}
	}
}

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(a *Authority) {
		if d >= 0 {
			a.leeway = d
		}
	}
}

// WithValidMethods overrides the accepted signing algorithms.
func WithValidMethods(algs []string) Option {
	return func(a *Authority) {
		if len(algs) > 0 {
			a.validAlgs = algs
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

// WithReplayGuard makes every token single-use, keyed by jti: verified
// tokens are claimed against g and a second presentation fails with
// nonce.ErrReplayed.
func WithReplayGuard(g replay.Guard) Option {
	return func(a *Authority) { a.guard = g }
}

// New returns a symmetric Authority that signs and verifies with an
// HS256 secret.
func New(secret []byte, opts ...Option) (*Authority, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwtnonce: empty secret")
	}
	a := &Authority{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		validAlgs: []string{jwt.SigningMethodHS256.Alg()},
		keyfunc: func(t *jwt.Token) (any, error) {
			return secret, nil
		},
	}
	a.apply(opts)
	return a, nil
}

func (a *Authority) apply(opts []Option) {
	a.lifetime = DefaultLifetime
	a.leeway = DefaultLeeway
	a.now = time.Now
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
}

// Issue implements nonce.Issuer: a signed JWT bound to n.Handle and the
// subject carried by ctx, expiring one lifetime from now.
func (a *Authority) Issue(ctx context.Context, n nonce.Nonce) (string, error) {
	if a.signKey == nil {
		return "", fmt.Errorf("jwtnonce: verify-only authority cannot issue")
	}
	if n.Handle == "" {
		return "", fmt.Errorf("%w: empty handle", nonce.ErrInvalid)
	}

	now := a.now()
	claims := nonceClaims{
		Handle: n.Handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.lifetime)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	if subject, ok := nonce.SubjectFromContext(ctx); ok {
		claims.Subject = subject
	}

	signed, err := jwt.NewWithClaims(a.method, claims).SignedString(a.signKey)
	if err != nil {
		return "", fmt.Errorf("sign nonce: %w", err)
	}
	return signed, nil
}

// Verify implements nonce.Verifier. Signature, algorithm, expiry and
// (when configured) issuer and audience are checked by the parser; the
// handle claim and the context subject are checked here. Expired tokens
// fail with nonce.ErrExpired, everything else with nonce.ErrInvalid.
func (a *Authority) Verify(ctx context.Context, n nonce.Nonce, token string) error {
	if n.Handle == "" || token == "" {
		return fmt.Errorf("%w: empty handle or token", nonce.ErrInvalid)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(a.validAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	parser := jwt.NewParser(opts...)

	var claims nonceClaims
	if _, err := parser.ParseWithClaims(token, &claims, a.keyfunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", nonce.ErrExpired, err)
		}
		return fmt.Errorf("%w: token parse/verify failed: %v", nonce.ErrInvalid, err)
	}

	if claims.Handle != n.Handle {
		return fmt.Errorf("%w: handle mismatch", nonce.ErrInvalid)
	}
	subject, _ := nonce.SubjectFromContext(ctx)
	if claims.Subject != subject {
		return fmt.Errorf("%w: subject mismatch", nonce.ErrInvalid)
	}

	if a.guard != nil {
		key := claims.ID
		if key == "" {
			key = token
		}
		ttl := a.lifetime
		if claims.ExpiresAt != nil {
			ttl = claims.ExpiresAt.Sub(a.now())
		}
		if ttl <= 0 {
			ttl = time.Second
		}
		if err := a.guard.Claim(ctx, key, ttl); err != nil {
			return err
		}
	}
	return nil
}
