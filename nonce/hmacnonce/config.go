package hmacnonce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config for env-driven construction. Defaults can be loaded via
// envdecode.
type Config struct {
	// Secret is the HMAC key. ENV: AJAX_NONCE_SECRET
	Secret string `env:"AJAX_NONCE_SECRET"`
	// SecretFile, when set, wins over Secret: the key is loaded from the
	// file and hot-reloaded on change. ENV: AJAX_NONCE_SECRET_FILE
	SecretFile string `env:"AJAX_NONCE_SECRET_FILE"`
	// Lifetime bounds token validity. ENV: AJAX_NONCE_LIFETIME
	Lifetime time.Duration `env:"AJAX_NONCE_LIFETIME,default=24h"`
}

// NewFromConfig builds an Authority from cfg. ctx bounds the key file
// watcher when SecretFile is set. Explicit opts win over cfg values.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Authority, error) {
	var source KeySource
	switch {
	case cfg.SecretFile != "":
		k, err := NewFileKeyring(ctx, cfg.SecretFile, slog.Default())
		if err != nil {
			return nil, err
		}
		source = k
	case cfg.Secret != "":
		source = StaticKey(cfg.Secret)
	default:
		return nil, fmt.Errorf("hmacnonce: no secret configured")
	}

	if cfg.Lifetime > 0 {
		opts = append([]Option{WithLifetime(cfg.Lifetime)}, opts...)
	}
	return New(source, opts...)
}

// NewFromEnv builds an Authority using envdecode to populate Config.
func NewFromEnv(ctx context.Context, opts ...Option) (*Authority, error) {
	var cfg Config
	_ = envdecode.Decode(&cfg)
	return NewFromConfig(ctx, cfg, opts...)
}
