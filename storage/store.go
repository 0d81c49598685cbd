package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// BlobStore writes opaque byte blobs at hierarchical keys.
// Keys use forward slashes regardless of backend.
type BlobStore interface {
	// Put writes data at key, creating any intermediate hierarchy.
	// An existing blob at the same key is overwritten.
	Put(ctx context.Context, key string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// FSStore is a local-filesystem BlobStore rooted at a base directory.
type FSStore struct {
	base string
}

// NewFSStore creates a filesystem store rooted at base.
// The base directory is created if absent.
func NewFSStore(base string) (*FSStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, classifyFS("mkdir", base, err)
	}
	return &FSStore{base: base}, nil
}

// Put implements BlobStore.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return classifyFS("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return classifyFS("put", path, err)
	}
	return nil
}

// Close implements BlobStore.
func (s *FSStore) Close() error {
	return nil
}

// Verify FSStore implements BlobStore.
var _ BlobStore = (*FSStore)(nil)

// StubStore is a test store that records puts without persisting.
type StubStore struct {
	mu sync.Mutex

	// Blobs maps key to the written data.
	Blobs map[string][]byte
	// Keys records put order.
	Keys []string
	// Closed indicates whether Close was called.
	Closed bool

	// ErrorOnPut, if non-nil, is returned by Put.
	ErrorOnPut error
}

// NewStubStore creates a new stub store for testing.
func NewStubStore() *StubStore {
	return &StubStore{Blobs: make(map[string][]byte)}
}

// Put records the blob without persisting.
func (s *StubStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnPut != nil {
		return s.ErrorOnPut
	}
	s.Blobs[key] = data
	s.Keys = append(s.Keys, key)
	return nil
}

// Close marks the store as closed.
func (s *StubStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// PutCount returns the number of successful puts.
func (s *StubStore) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Keys)
}

// SetError sets the error returned by subsequent Put calls.
func (s *StubStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorOnPut = err
}

// Verify StubStore implements BlobStore.
var _ BlobStore = (*StubStore)(nil)
