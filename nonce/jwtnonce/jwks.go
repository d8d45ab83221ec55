package jwtnonce

import (
	"context"
	"fmt"

	keyfunc "github.com/MicahParks/keyfunc/v3"
)

// NewVerifier returns a verify-only Authority whose verification keys
// come from a JWKS endpoint. Keys are fetched eagerly and refreshed in
// the background until ctx is canceled. RS256 is accepted by default;
// widen with WithValidMethods. Issue fails on the returned Authority,
// signing stays with the service holding the private key.
func NewVerifier(ctx context.Context, jwksURI string, opts ...Option) (*Authority, error) {
	if jwksURI == "" {
		return nil, fmt.Errorf("jwtnonce: jwks uri required")
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	a := &Authority{
		validAlgs: []string{"RS256"},
		keyfunc:   kf.Keyfunc,
	}
	a.apply(opts)
	return a, nil
}
