package jwtnonce

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ajaxmux/ajaxmux/nonce"
	"github.com/ajaxmux/ajaxmux/nonce/replay/memoryguard"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestAuthority(t *testing.T, clock *testClock, opts ...Option) *Authority {
	t.Helper()
	opts = append([]Option{
		WithLifetime(time.Hour),
		WithLeeway(0),
		WithClock(clock.now),
	}, opts...)
	a, err := New(testSecret, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	a := newTestAuthority(t, clock)
	ctx := nonce.WithSubject(context.Background(), "user:42")
	n := nonce.Nonce{Handle: "export-posts"}

	token, err := a.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := a.Verify(ctx, n, token); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Wire contract: handle as a private claim, subject in sub, a jti
	// for replay keying.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if got, _ := claims["handle"].(string); got != "export-posts" {
		t.Fatalf("handle claim: got %q, want %q", got, "export-posts")
	}
	if got, _ := claims["sub"].(string); got != "user:42" {
		t.Fatalf("sub claim: got %q, want %q", got, "user:42")
	}
	if jti, _ := claims["jti"].(string); jti == "" {
		t.Fatalf("jti claim missing")
	}
}

func TestExpiredToken(t *testing.T) {
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	a := newTestAuthority(t, clock)
	ctx := context.Background()
	n := nonce.Nonce{Handle: "export-posts"}

	token, err := a.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.t = clock.t.Add(time.Hour + time.Second)
	if err := a.Verify(ctx, n, token); !errors.Is(err, nonce.ErrExpired) {
		t.Fatalf("Verify after expiry: got %v, want ErrExpired", err)
	}
}

func TestVerifyRejectsMismatches(t *testing.T) {
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	a := newTestAuthority(t, clock)
	ctx := context.Background()
	n := nonce.Nonce{Handle: "export-posts"}

	token, err := a.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	t.Run("wrong handle", func(t *testing.T) {
		err := a.Verify(ctx, nonce.Nonce{Handle: "import-posts"}, token)
		if !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("got %v, want ErrInvalid", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := New([]byte("another-secret-another-secret-xx"),
			WithLeeway(0), WithClock(clock.now))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := other.Verify(ctx, n, token); !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("got %v, want ErrInvalid", err)
		}
	})

	t.Run("subject mismatch", func(t *testing.T) {
		userToken, err := a.Issue(nonce.WithSubject(ctx, "user:42"), n)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if err := a.Verify(ctx, n, userToken); !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("anonymous ctx: got %v, want ErrInvalid", err)
		}
		otherCtx := nonce.WithSubject(ctx, "user:7")
		if err := a.Verify(otherCtx, n, userToken); !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("other subject: got %v, want ErrInvalid", err)
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if err := a.Verify(ctx, n, ""); !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("empty token: got %v, want ErrInvalid", err)
		}
		if err := a.Verify(ctx, nonce.Nonce{}, token); !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("empty handle: got %v, want ErrInvalid", err)
		}
		if _, err := a.Issue(ctx, nonce.Nonce{}); !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("Issue empty handle: got %v, want ErrInvalid", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if err := a.Verify(ctx, n, "not-a-jwt"); !errors.Is(err, nonce.ErrInvalid) {
			t.Fatalf("got %v, want ErrInvalid", err)
		}
	})
}

func TestNoneAlgorithmRejected(t *testing.T) {
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	a := newTestAuthority(t, clock)
	ctx := context.Background()
	n := nonce.Nonce{Handle: "export-posts"}

	claims := nonceClaims{
		Handle: n.Handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if err := a.Verify(ctx, n, unsigned); !errors.Is(err, nonce.ErrInvalid) {
		t.Fatalf("none alg: got %v, want ErrInvalid", err)
	}
}

func TestIssuerAndAudienceEnforced(t *testing.T) {
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	strict := newTestAuthority(t, clock,
		WithIssuer("https://ajax.example.com"),
		WithAudience("forms"))
	plain := newTestAuthority(t, clock)
	ctx := context.Background()
	n := nonce.Nonce{Handle: "export-posts"}

	token, err := strict.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := strict.Verify(ctx, n, token); err != nil {
		t.Fatalf("Verify with matching iss/aud: %v", err)
	}

	bare, err := plain.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := strict.Verify(ctx, n, bare); !errors.Is(err, nonce.ErrInvalid) {
		t.Fatalf("Verify without iss/aud: got %v, want ErrInvalid", err)
	}
}

func TestSingleUse(t *testing.T) {
	guard := memoryguard.New()
	defer guard.Close()

	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	a := newTestAuthority(t, clock, WithReplayGuard(guard))
	ctx := context.Background()
	n := nonce.Nonce{Handle: "export-posts"}

	first, err := a.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := a.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := a.Verify(ctx, n, first); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	if err := a.Verify(ctx, n, first); !errors.Is(err, nonce.ErrReplayed) {
		t.Fatalf("replayed Verify: got %v, want ErrReplayed", err)
	}
	// Distinct jti, so the second token is still good.
	if err := a.Verify(ctx, n, second); err != nil {
		t.Fatalf("second token Verify: %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("New(nil): want error")
	}
	ctx := context.Background()
	if _, err := NewVerifier(ctx, ""); err == nil {
		t.Fatalf("NewVerifier(empty uri): want error")
	}
}

// jwksFor serves a one-key JWKS for pub over httptest.
func jwksFor(t *testing.T, pub *rsa.PublicKey, kid string) *httptest.Server {
	t.Helper()
	e := base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x00, 0x01})
	set := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   e,
		}},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
}

func TestJWKSVerifier(t *testing.T) {
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	const kid = "test-key"
	srv := jwksFor(t, &pk.PublicKey, kid)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v, err := NewVerifier(ctx, srv.URL, WithLeeway(0))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	n := nonce.Nonce{Handle: "export-posts"}
	claims := nonceClaims{
		Handle: n.Handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := v.Verify(ctx, n, signed); err != nil {
		t.Fatalf("Verify RS256: %v", err)
	}

	// Symmetric tokens are not acceptable to an RS256 verifier.
	hs, err := New(testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hsToken, err := hs.Issue(ctx, n)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := v.Verify(ctx, n, hsToken); !errors.Is(err, nonce.ErrInvalid) {
		t.Fatalf("Verify HS256 against JWKS verifier: got %v, want ErrInvalid", err)
	}

	if _, err := v.Issue(ctx, n); err == nil {
		t.Fatalf("Issue on verify-only authority: want error")
	}
}
