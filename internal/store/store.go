// Package store provides the key-value snapshot store the crawl engine
// persists results through. Values are JSON documents; writes are
// last-write-wins and callers treat failures as best-effort.
package store

import (
	"context"
	"fmt"
)

// Store is the narrow persistence contract consumed by the crawl engine.
// Get unmarshals the stored value into into and reports whether the key
// existed.
type Store interface {
	Get(ctx context.Context, key string, into any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

// Error represents a storage failure.
type Error struct {
	Key     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store error for %q: %s: %v", e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("store error for %q: %s", e.Key, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
