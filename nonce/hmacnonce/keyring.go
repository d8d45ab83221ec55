package hmacnonce

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Keyring is a rotating KeySource. Key returns the current secret and Set
// swaps it atomically, so concurrent issues and verifies see either the
// old or the new key, never a mix.
type Keyring struct {
	current atomic.Pointer[[]byte]
}

// NewKeyring returns a keyring holding key.
func NewKeyring(key []byte) (*Keyring, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("hmacnonce: empty key")
	}
	k := &Keyring{}
	k.Set(key)
	return k, nil
}

// Key implements KeySource.
func (k *Keyring) Key() []byte {
	p := k.current.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Set installs key as the current secret. Empty keys are ignored so a
// broken rotation cannot wipe the ring.
func (k *Keyring) Set(key []byte) {
	if len(key) == 0 {
		return
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	k.current.Store(&cp)
}

// NewFileKeyring loads the secret from path and hot-reloads it whenever
// the file changes, until ctx is canceled. The parent directory is
// watched rather than the file itself so replace-by-rename rotations
// (the usual atomic write) are picked up. A reload that fails or yields
// an empty file keeps the previous key. Surrounding whitespace in the
// file is trimmed.
func NewFileKeyring(ctx context.Context, path string, log *slog.Logger) (*Keyring, error) {
	if log == nil {
		log = slog.Default()
	}

	key, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	k, err := NewKeyring(key)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	go k.watch(ctx, w, path, log)
	return k, nil
}

func (k *Keyring) watch(ctx context.Context, w *fsnotify.Watcher, path string, log *slog.Logger) {
	defer w.Close()
	base := filepath.Base(path)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			key, err := readKeyFile(path)
			if err != nil {
				log.WarnContext(ctx, "keyring.reload.fail",
					slog.String("path", path),
					slog.String("err", err.Error()))
				continue
			}
			if bytes.Equal(key, k.Key()) {
				continue
			}
			k.Set(key)
			log.InfoContext(ctx, "keyring.reload", slog.String("path", path))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.DebugContext(ctx, "keyring.watch.err", slog.String("err", err.Error()))
		}
	}
}

func readKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key := bytes.TrimSpace(raw)
	if len(key) == 0 {
		return nil, fmt.Errorf("key file %s is empty", path)
	}
	return key, nil
}
