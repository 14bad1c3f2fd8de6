package media

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps uploads in a map. Used in development mode and in
// tests, where a real bucket is not available.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailNext makes the next Upload return an error. Lets tests drive
	// the upload-then-insert failure path.
	FailNext bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext {
		m.FailNext = false
		return "", fmt.Errorf("upload failed for %s", path)
	}
	m.blobs[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

// Len reports how many blobs were stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
