package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type fileDocument struct {
	Entries map[string]string `yaml:"entries"`
}

// FileKV persists all entries in a single YAML file.
// Each write replaces the file through a rename, so a crash never leaves a
// half-written document behind.
type FileKV struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string
}

var _ KV = (*FileKV)(nil)

// OpenFileKV loads path, or starts empty when the file does not exist yet.
func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{
		path:    path,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return kv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrUnavailable, path, err)
	}
	if doc.Entries != nil {
		kv.entries = doc.Entries
	}
	return kv, nil
}

func (kv *FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.entries[key]
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

func (kv *FileKV) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := kv.entries[key]; ok {
			result[key] = []byte(v)
		}
	}
	return result, nil
}

func (kv *FileKV) Set(ctx context.Context, key string, value []byte) error {
	return kv.SetMulti(ctx, map[string][]byte{key: value})
}

func (kv *FileKV) SetMulti(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()

	next := make(map[string]string, len(kv.entries)+len(entries))
	for k, v := range kv.entries {
		next[k] = v
	}
	for k, v := range entries {
		next[k] = string(v)
	}
	if err := kv.flush(next); err != nil {
		return err
	}
	kv.entries = next
	return nil
}

func (kv *FileKV) Delete(ctx context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.entries[key]; !ok {
		return nil
	}

	next := make(map[string]string, len(kv.entries))
	for k, v := range kv.entries {
		if k != key {
			next[k] = v
		}
	}
	if err := kv.flush(next); err != nil {
		return err
	}
	kv.entries = next
	return nil
}

func (kv *FileKV) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	result := make(map[string][]byte)
	for k, v := range kv.entries {
		if strings.HasPrefix(k, prefix) {
			result[k] = []byte(v)
		}
	}
	return result, nil
}

func (kv *FileKV) flush(entries map[string]string) error {
	data, err := yaml.Marshal(fileDocument{Entries: entries})
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	dir := filepath.Dir(kv.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrUnavailable, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(kv.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrUnavailable, err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrUnavailable, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrUnavailable, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), kv.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrUnavailable, kv.path, err)
	}
	return nil
}
