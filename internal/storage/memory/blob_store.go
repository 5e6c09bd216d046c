// Package memory keeps archived pages in process memory. It backs the
// "memory" archive backend and is meant for local development.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// DefaultMaxObjects bounds a BlobStore created without an explicit limit.
const DefaultMaxObjects = 500

// BlobStore holds up to maxObjects pages; storing one more evicts the page
// written longest ago.
type BlobStore struct {
	mu         sync.RWMutex
	maxObjects int
	data       map[string][]byte
	order      []string
}

// NewBlobStore creates a store that keeps DefaultMaxObjects pages.
func NewBlobStore() *BlobStore {
	return NewBlobStoreWithLimit(DefaultMaxObjects)
}

// NewBlobStoreWithLimit creates a store that keeps at most maxObjects pages.
// A non-positive limit means DefaultMaxObjects.
func NewBlobStoreWithLimit(maxObjects int) *BlobStore {
	if maxObjects <= 0 {
		maxObjects = DefaultMaxObjects
	}
	return &BlobStore{maxObjects: maxObjects, data: make(map[string][]byte)}
}

// PutObject copies the page and returns a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[path]; !exists {
		if len(s.order) == s.maxObjects {
			delete(s.data, s.order[0])
			s.order = s.order[1:]
		}
		s.order = append(s.order, path)
	}
	s.data[path] = body
	return "memory://" + path, nil
}

// Get returns a stored page.
func (s *BlobStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.data[path]
	return body, ok
}

// Paths lists stored page paths in lexical order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for p := range s.data {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
