// Package redisguard enforces single-use nonces across processes by
// recording each consumed token in Redis with SET NX and a TTL.
package redisguard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ajaxmux/ajaxmux/nonce"
)

// Config for the Redis replay guard. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for consumed-token records. ENV: AJAX_REPLAY_KEY_PREFIX
	KeyPrefix string `env:"AJAX_REPLAY_KEY_PREFIX,default=ajax:replay:"`
	// Client, when set, is used instead of dialing RedisAddr and is not
	// closed by Close.
	Client *redis.Client `env:"-"`
}

// Guard implements replay.Guard on Redis.
type Guard struct {
	client     *redis.Client
	keyPrefix  string
	ownsClient bool
}

// New returns a guard on cfg. When cfg.Client is nil the guard dials
// RedisAddr and verifies the connection with a ping.
func New(cfg Config) (*Guard, error) {
	client := cfg.Client
	owns := false
	if client == nil {
		addr := cfg.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		owns = true
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ajax:replay:"
	}
	return &Guard{client: client, keyPrefix: prefix, ownsClient: owns}, nil
}

// NewFromEnv builds a guard using envdecode to populate Config.
func NewFromEnv() (*Guard, error) {
	var cfg Config
	_ = envdecode.Decode(&cfg)
	return New(cfg)
}

// Claim implements replay.Guard. The record lives exactly ttl, after
// which the token has expired anyway and the key can go.
func (g *Guard) Claim(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", nonce.ErrInvalid)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	ok, err := g.client.SetNX(ctx, g.key(token), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: token already used", nonce.ErrReplayed)
	}
	return nil
}

// Close closes the Redis client when the guard dialed it itself.
func (g *Guard) Close() error {
	if g.ownsClient {
		return g.client.Close()
	}
	return nil
}

// key hashes the token so records stay fixed-size regardless of the
// token scheme in use.
func (g *Guard) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return g.keyPrefix + hex.EncodeToString(sum[:])
}
