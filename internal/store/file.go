package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File is a Store that keeps one pretty-printed JSON file per key under a
// directory, so crawl snapshots are directly inspectable and exportable.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile returns a file-backed store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Key: dir, Message: "failed to create store directory", Cause: err}
	}
	return &File{dir: dir}, nil
}

// path maps a key to its backing file. Keys are sanitized so they cannot
// escape the store directory.
func (f *File) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(f.dir, safe+".json")
}

// Get implements Store.
func (f *File) Get(_ context.Context, key string, into any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Key: key, Message: "failed to read snapshot file", Cause: err}
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return true, &Error{Key: key, Message: "failed to decode snapshot file", Cause: err}
	}
	return true, nil
}

// Set implements Store. The write goes through a temp file and rename so a
// crash never leaves a half-written snapshot behind.
func (f *File) Set(_ context.Context, key string, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return &Error{Key: key, Message: "failed to encode value", Cause: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return &Error{Key: key, Message: "failed to write snapshot file", Cause: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		return &Error{Key: key, Message: "failed to replace snapshot file", Cause: err}
	}
	return nil
}

// Remove implements Store.
func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return &Error{Key: key, Message: "failed to remove snapshot file", Cause: err}
	}
	return nil
}
