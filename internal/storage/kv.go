// Package storage provides the key/value engines the review store persists to.
package storage

import (
	"context"
	"errors"
)

//go:generate mockgen -source=kv.go -destination=../mocks/storage/mock_kv.go -package=mock_storage

// ErrUnavailable marks failures of the underlying persistence layer.
// Check with errors.Is(err, storage.ErrUnavailable).
var ErrUnavailable = errors.New("storage unavailable")

// KV is a string-keyed store of opaque values.
// Get returns nil, nil when the key does not exist.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMulti writes all entries or none of them.
	SetMulti(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, key string) error
	// Scan returns every entry whose key starts with prefix.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
}
