package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/guarzo/staybook/common"
)

var _ common.TokenStore = (*FileStore)(nil)

// FileStore persists tokens in a single JSON document so a session survives
// between CLI invocations. Each key maps to {"value": ..., "expires_at": unixMillis};
// an expires_at of 0 means no expiry.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: strings.TrimSpace(path),
		now:  time.Now,
	}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, _, found, err := f.GetWithExpiration(ctx, key)
	return value, found, err
}

func (f *FileStore) GetWithExpiration(_ context.Context, key string) (string, time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := f.read()
	if err != nil {
		return "", time.Time{}, false, err
	}
	entry := gjson.GetBytes(raw, escapeKey(key))
	if !entry.Exists() {
		return "", time.Time{}, false, nil
	}

	var expiresAt time.Time
	if ms := entry.Get("expires_at").Int(); ms > 0 {
		expiresAt = time.UnixMilli(ms)
		if !f.now().Before(expiresAt) {
			return "", time.Time{}, false, nil
		}
	}
	return entry.Get("value").String(), expiresAt, true, nil
}

func (f *FileStore) Set(_ context.Context, key, value string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := f.read()
	if err != nil {
		return err
	}

	var expiresAt int64
	if expiration > 0 {
		expiresAt = f.now().Add(expiration).UnixMilli()
	}
	raw, err = sjson.SetBytes(raw, escapeKey(key), map[string]any{
		"value":      value,
		"expires_at": expiresAt,
	})
	if err != nil {
		return fmt.Errorf("file store: set %s: %w", key, err)
	}
	return f.write(raw)
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := f.read()
	if err != nil {
		return err
	}
	if !gjson.GetBytes(raw, escapeKey(key)).Exists() {
		return nil
	}
	raw, err = sjson.DeleteBytes(raw, escapeKey(key))
	if err != nil {
		return fmt.Errorf("file store: delete %s: %w", key, err)
	}
	return f.write(raw)
}

func (f *FileStore) read() ([]byte, error) {
	if f.path == "" {
		return nil, fmt.Errorf("file store: path not configured")
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("file store: read failed: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("file store: %s is not valid JSON", f.path)
	}
	return raw, nil
}

// write replaces the file atomically so a crash never leaves half a document.
func (f *FileStore) write(raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("file store: create dir failed: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("file store: create temp failed: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: write failed: %w", err)
	}
	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: chmod failed: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: close failed: %w", err)
	}
	if err = os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: rename failed: %w", err)
	}
	return nil
}

var keyEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)

func escapeKey(key string) string {
	return keyEscaper.Replace(key)
}
