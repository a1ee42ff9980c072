// Package cache provides a generic TTL key/value cache with pluggable
// storage backends.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is a cached payload with its freshness metadata.
type Entry[T any] struct {
	Payload   T             `json:"payload"`
	WrittenAt time.Time     `json:"written_at"`
	TTL       time.Duration `json:"ttl"`
}

// NewEntry creates an entry written now.
func NewEntry[T any](payload T, ttl time.Duration) Entry[T] {
	return Entry[T]{Payload: payload, WrittenAt: time.Now(), TTL: ttl}
}

// Fresh reports whether the entry is still valid at the given time.
func (e Entry[T]) Fresh(now time.Time) bool {
	if e.WrittenAt.IsZero() || e.TTL <= 0 {
		return false
	}
	return now.Sub(e.WrittenAt) < e.TTL
}

// Store persists cache entries. Get returns ok=false on a miss; a non-nil
// error means the stored entry was unreadable and should be treated as a
// miss by callers (never fatal).
type Store[T any] interface {
	Get(key string) (Entry[T], bool, error)
	Put(key string, e Entry[T]) error
}

// FileStore keeps one JSON blob per key under a directory.
type FileStore[T any] struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir. The directory is
// created lazily on the first Put.
func NewFileStore[T any](dir string) *FileStore[T] {
	return &FileStore[T]{dir: dir}
}

// Get reads the entry for key. An absent file is a plain miss; an unreadable
// or corrupt file is a miss with the cause attached.
func (s *FileStore[T]) Get(key string) (Entry[T], bool, error) {
	var entry Entry[T]

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, fmt.Errorf("read cache %s: %w", key, err)
	}

	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, false, fmt.Errorf("decode cache %s: %w", key, err)
	}
	return entry, true, nil
}

// Put writes the entry for key, replacing any prior one.
func (s *FileStore[T]) Put(key string, e Entry[T]) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", key, err)
	}

	if err := os.WriteFile(s.path(key), data, 0600); err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	return nil
}

func (s *FileStore[T]) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

// sanitizeKey makes a key safe to use as a file name.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return replacer.Replace(key)
}

// MemoryStore is an in-process store, used in tests and as a cheap default.
type MemoryStore[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{entries: make(map[string]Entry[T])}
}

func (s *MemoryStore[T]) Get(key string) (Entry[T], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore[T]) Put(key string, e Entry[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}
