// Package hmacnonce issues and verifies stateless anti-forgery tokens: a
// truncated hex HMAC-SHA256 over the current time tick, the nonce handle
// and the caller subject.
//
// The clock is split into ticks of half the configured lifetime and the
// verifier accepts the current and the previous tick, so a token is good
// for at least half a lifetime and at most a full one. Tokens carry no
// server state; single-use semantics are opt-in through a replay.Guard.
package hmacnonce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ajaxmux/ajaxmux/nonce"
	"github.com/ajaxmux/ajaxmux/nonce/replay"
)

// DefaultLifetime bounds token validity when no override is configured.
const DefaultLifetime = 24 * time.Hour

// tokenLen is the number of hex digits kept from the MAC.
const tokenLen = 20

// Generation reports which tick a token verified against.
type Generation int

const (
	// Fresh means the token was minted in the current tick.
	Fresh Generation = 1
	// Previous means the token is from the previous tick and nearing
	// expiry.
	Previous Generation = 2
)

// KeySource supplies the HMAC secret. Implementations may rotate it;
// Key is called on every issue and verify.
type KeySource interface {
	Key() []byte
}

// StaticKey adapts a fixed secret to KeySource.
type StaticKey []byte

// Key implements KeySource.
func (k StaticKey) Key() []byte { return []byte(k) }

// Authority issues and verifies tokens. It implements nonce.Issuer and
// nonce.Verifier.
type Authority struct {
	key      KeySource
	lifetime time.Duration
	now      func() time.Time
	guard    replay.Guard
}

var (
	_ nonce.Issuer   = (*Authority)(nil)
	_ nonce.Verifier = (*Authority)(nil)
)

// Option configures an Authority.
type Option func(*Authority)

// WithLifetime overrides DefaultLifetime. Lifetimes under two seconds are
// rejected by New because the tick width would collapse to zero.
func WithLifetime(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.lifetime = d
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

// WithReplayGuard makes every token single-use: accepted tokens are
// claimed against g and a second presentation fails with
// nonce.ErrReplayed.
func WithReplayGuard(g replay.Guard) Option {
	return func(a *Authority) { a.guard = g }
}

// New returns an Authority using key material from key.
func New(key KeySource, opts ...Option) (*Authority, error) {
	if key == nil || len(key.Key()) == 0 {
		return nil, fmt.Errorf("hmacnonce: empty key")
	}

	a := &Authority{
		key:      key,
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.lifetime < 2*time.Second {
		return nil, fmt.Errorf("hmacnonce: lifetime %s is shorter than one tick", a.lifetime)
	}
	return a, nil
}

// Issue implements nonce.Issuer: the token for the current tick, bound to
// n.Handle and the subject carried by ctx.
func (a *Authority) Issue(ctx context.Context, n nonce.Nonce) (string, error) {
	if n.Handle == "" {
		return "", fmt.Errorf("%w: empty handle", nonce.ErrInvalid)
	}
	subject, _ := nonce.SubjectFromContext(ctx)
	return a.tokenAt(a.tick(a.now()), n.Handle, subject), nil
}

// Verify implements nonce.Verifier.
func (a *Authority) Verify(ctx context.Context, n nonce.Nonce, token string) error {
	_, err := a.Check(ctx, n, token)
	return err
}

// Check verifies token and reports which generation it matched: Fresh for
// the current tick, Previous for the one before. Any other token fails
// with nonce.ErrInvalid; with a replay guard configured a reused token
// fails with nonce.ErrReplayed.
func (a *Authority) Check(ctx context.Context, n nonce.Nonce, token string) (Generation, error) {
	if n.Handle == "" || token == "" {
		return 0, fmt.Errorf("%w: empty handle or token", nonce.ErrInvalid)
	}
	subject, _ := nonce.SubjectFromContext(ctx)
	tick := a.tick(a.now())

	var gen Generation
	switch {
	case macEqual(token, a.tokenAt(tick, n.Handle, subject)):
		gen = Fresh
	case macEqual(token, a.tokenAt(tick-1, n.Handle, subject)):
		gen = Previous
	default:
		return 0, fmt.Errorf("%w: token does not match any active generation", nonce.ErrInvalid)
	}

	if a.guard != nil {
		if err := a.guard.Claim(ctx, token, a.lifetime); err != nil {
			return 0, err
		}
	}
	return gen, nil
}

// Lifetime reports the configured token lifetime.
func (a *Authority) Lifetime() time.Duration { return a.lifetime }

// tick is the half-lifetime bucket index of t, rounded up.
func (a *Authority) tick(t time.Time) int64 {
	half := int64(a.lifetime / time.Second / 2)
	return (t.Unix() + half - 1) / half
}

func (a *Authority) tokenAt(tick int64, handle, subject string) string {
	mac := hmac.New(sha256.New, a.key.Key())
	fmt.Fprintf(mac, "%d|%s|%s", tick, handle, subject)
	return hex.EncodeToString(mac.Sum(nil))[:tokenLen]
}

// macEqual compares tokens in constant time.
func macEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
