// Package memoryguard is an in-process replay guard for single-node
// deployments and tests.
package memoryguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajaxmux/ajaxmux/nonce"
)

// Guard keeps consumed tokens in a map and sweeps expired records with a
// background janitor. Close stops the janitor.
type Guard struct {
	now      func() time.Time
	interval time.Duration

	mu   sync.Mutex
	seen map[string]time.Time // token -> record expiry

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Guard.
type Option func(*Guard)

// WithJanitorInterval overrides how often expired records are swept.
func WithJanitorInterval(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.interval = d
		}
	}
}

// New returns a running guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		now:      time.Now,
		interval: time.Minute,
		seen:     make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	go g.janitor()
	return g
}

// Claim implements replay.Guard.
func (g *Guard) Claim(_ context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", nonce.ErrInvalid)
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if exp, ok := g.seen[token]; ok && now.Before(exp) {
		return fmt.Errorf("%w: token already used", nonce.ErrReplayed)
	}
	g.seen[token] = now.Add(ttl)
	return nil
}

// Close stops the janitor. The guard stays usable; records simply stop
// being swept.
func (g *Guard) Close() error {
	g.stopOnce.Do(func() { close(g.stop) })
	return nil
}

func (g *Guard) janitor() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			now := g.now()
			g.mu.Lock()
			for token, exp := range g.seen {
				if now.After(exp) {
					delete(g.seen, token)
				}
			}
			g.mu.Unlock()
		}
	}
}
