// Package nonce defines the anti-forgery token contract used to gate ajax
// dispatch: a named handle, an Issuer that mints tokens for it, and a
// Verifier that checks submitted tokens.
//
// Implementations live in subpackages (hmacnonce, jwtnonce). Consumers that
// only gate dispatch depend on this package alone.
package nonce

import (
	"context"
	"errors"
)

// Sentinel errors returned by Verifier implementations. Implementations
// wrap them with fmt.Errorf("%w: ...") to attach detail; callers test with
// errors.Is.
var (
	// ErrInvalid means the token does not verify against the handle.
	ErrInvalid = errors.New("invalid nonce")

	// ErrExpired means the token's validity window has passed.
	ErrExpired = errors.New("nonce expired")

	// ErrReplayed means single-use enforcement has already consumed the
	// token.
	ErrReplayed = errors.New("nonce replayed")
)

// Nonce identifies a named anti-forgery token. Handles are typically
// scoped one per protected action or per action family.
type Nonce struct {
	Handle string
}

// Issuer mints tokens.
type Issuer interface {
	// Issue returns a fresh token for n, bound to any caller identity
	// carried by ctx (see WithSubject).
	Issue(ctx context.Context, n Nonce) (string, error)
}

// Verifier checks submitted tokens.
type Verifier interface {
	// Verify returns nil when token is currently valid for n. Failures
	// are ErrInvalid, ErrExpired or ErrReplayed, possibly wrapped.
	Verify(ctx context.Context, n Nonce, token string) error
}
