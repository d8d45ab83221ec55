// Package noncetest provides deterministic nonce fakes for tests.
package noncetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajaxmux/ajaxmux/nonce"
)

// Static is an Issuer/Verifier pair with fixed behavior: Issue always
// returns Token, and Verify accepts exactly Token for any handle unless
// Err forces a failure. All calls are recorded for assertions. Safe for
// concurrent use.
type Static struct {
	// Token is the only accepted token.
	Token string
	// Err, when non-nil, is returned by every Verify call.
	Err error

	mu       sync.Mutex
	issued   []nonce.Nonce
	verified []VerifyCall
}

// VerifyCall records one Verify invocation.
type VerifyCall struct {
	Nonce nonce.Nonce
	Token string
}

func (s *Static) Issue(ctx context.Context, n nonce.Nonce) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, n)
	return s.Token, nil
}

func (s *Static) Verify(ctx context.Context, n nonce.Nonce, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = append(s.verified, VerifyCall{Nonce: n, Token: token})
	if s.Err != nil {
		return s.Err
	}
	if token != s.Token {
		return fmt.Errorf("%w: token mismatch", nonce.ErrInvalid)
	}
	return nil
}

// Issued returns a copy of the nonces passed to Issue so far.
func (s *Static) Issued() []nonce.Nonce {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]nonce.Nonce, len(s.issued))
	copy(out, s.issued)
	return out
}

// Verified returns a copy of the recorded Verify calls.
func (s *Static) Verified() []VerifyCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VerifyCall, len(s.verified))
	copy(out, s.verified)
	return out
}
