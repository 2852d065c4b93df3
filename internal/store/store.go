// Package store persists small string values under string keys.
package store

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when a key is blank.
var ErrEmptyKey = errors.New("store: empty key")

// Store is a durable string-keyed slot store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Backend names accepted by config.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendMemcached = "memcached"
)
