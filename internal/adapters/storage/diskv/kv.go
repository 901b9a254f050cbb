// Package diskv provides the key-value store on a file-per-key disk layout.
package diskv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// cacheSizeMax bounds the in-memory read cache.
const cacheSizeMax = 1024 * 1024 // 1MB

// Store keeps keyed byte payloads as one file per key under a base directory.
// Colon-separated key segments become directory levels, so `ts:prefs:view`
// lands at `ts/prefs/view`.
type Store struct {
	d *diskv.Diskv
}

// Open prepares a store rooted at basePath.
func Open(basePath string) (*Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("diskv base path is required")
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      cacheSizeMax,
	})}, nil
}

// Get returns the value stored under key, reporting false on a miss.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := s.d.Read(key)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.d.Write(key, value); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. Deleting an absent key is not an
// error.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.d.Erase(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("erase %q: %w", key, err)
	}
	return nil
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, ":")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return strings.Join(pathKey.Path, ":") + ":" + pathKey.FileName
}
