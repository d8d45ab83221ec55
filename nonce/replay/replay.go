// Package replay enforces single-use nonce consumption. Verifiers that
// support it pass every accepted token through a Guard, so a token passes
// verification once and every later presentation fails with
// nonce.ErrReplayed until its record expires.
package replay

import (
	"context"
	"time"
)

// Guard records consumed tokens. Claim returns nil the first time a token
// is presented and nonce.ErrReplayed afterwards; the record may be
// dropped once ttl has elapsed, which is safe because the token itself
// has expired by then. Implementations must be safe for concurrent use.
type Guard interface {
	Claim(ctx context.Context, token string, ttl time.Duration) error
}
