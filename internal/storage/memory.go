package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryKV keeps entries in process memory.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string][]byte
	latency time.Duration
}

// MemoryOption configures a MemoryKV.
type MemoryOption func(*MemoryKV)

// WithLatency delays every operation, which makes interleavings observable in tests.
func WithLatency(d time.Duration) MemoryOption {
	return func(kv *MemoryKV) {
		kv.latency = d
	}
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV(opts ...MemoryOption) *MemoryKV {
	kv := &MemoryKV{entries: make(map[string][]byte)}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

var _ KV = (*MemoryKV)(nil)

func (kv *MemoryKV) wait(ctx context.Context) error {
	if kv.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(kv.latency):
		return nil
	}
}

func (kv *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := kv.wait(ctx); err != nil {
		return nil, err
	}
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return cloneBytes(kv.entries[key]), nil
}

func (kv *MemoryKV) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := kv.wait(ctx); err != nil {
		return nil, err
	}
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := kv.entries[key]; ok {
			result[key] = cloneBytes(v)
		}
	}
	return result, nil
}

func (kv *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	return kv.SetMulti(ctx, map[string][]byte{key: value})
}

func (kv *MemoryKV) SetMulti(ctx context.Context, entries map[string][]byte) error {
	if err := kv.wait(ctx); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for key, value := range entries {
		kv.entries[key] = cloneBytes(value)
	}
	return nil
}

func (kv *MemoryKV) Delete(ctx context.Context, key string) error {
	if err := kv.wait(ctx); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.entries, key)
	return nil
}

func (kv *MemoryKV) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := kv.wait(ctx); err != nil {
		return nil, err
	}
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	result := make(map[string][]byte)
	for key, value := range kv.entries {
		if strings.HasPrefix(key, prefix) {
			result[key] = cloneBytes(value)
		}
	}
	return result, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
