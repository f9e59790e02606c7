package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	gocache "github.com/patrickmn/go-cache"
)

type blob struct {
	data        []byte
	contentType string
}

// Storage holds blobs in a map and signed-URL tokens in an expiring cache, so
// tests can exercise signed-URL TTL semantics without a real provider.
type Storage struct {
	mu     sync.Mutex
	blobs  map[string]blob
	tokens *gocache.Cache
}

func NewStorage() *Storage {
	return &Storage{
		blobs:  map[string]blob{},
		tokens: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (s *Storage) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; ok {
		return fmt.Errorf("blob already exists: %s", key)
	}
	s.blobs[key] = blob{data: data, contentType: contentType}

	return nil
}

func (s *Storage) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.blobs, key)
	}
	return nil
}

func (s *Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	_, ok := s.blobs[key]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("blob not found: %s", key)
	}

	token := ulid.Make().String()
	s.tokens.Set(token, key, ttl)

	return fmt.Sprintf("memory://%s?token=%s", key, token), nil
}

// Get returns the stored blob bytes for tests.
func (s *Storage) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[key]
	return b.data, ok
}

// Resolve maps a signed-URL token back to its key while the token is live.
func (s *Storage) Resolve(token string) (string, bool) {
	v, ok := s.tokens.Get(token)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Len returns the number of stored blobs.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.blobs)
}
