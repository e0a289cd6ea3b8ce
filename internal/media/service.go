package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

const cacheTTL = 30 * time.Minute

// Service fronts a Store with a small in-memory read cache.
type Service struct {
	store *Store

	mu    sync.RWMutex
	cache map[string]cachedImage
	now   func() time.Time
}

type cachedImage struct {
	data        []byte
	contentType string
	cachedAt    time.Time
}

func NewService(store *Store) *Service {
	return &Service{
		store: store,
		cache: make(map[string]cachedImage),
		now:   time.Now,
	}
}

// Image returns the bytes of an object, served from cache when fresh.
func (s *Service) Image(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(cached.cachedAt) < cacheTTL {
		return cached.data, cached.contentType, nil
	}

	body, contentType, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}

	s.mu.Lock()
	s.cache[key] = cachedImage{data: data, contentType: contentType, cachedAt: s.now()}
	s.mu.Unlock()
	return data, contentType, nil
}

func (s *Service) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	s.forget(key)
	return s.store.Put(ctx, key, contentType, body)
}

func (s *Service) Delete(ctx context.Context, key string) error {
	s.forget(key)
	return s.store.Delete(ctx, key)
}

func (s *Service) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.store.PresignGet(ctx, key, ttl)
}

// CleanupCache drops expired entries.
func (s *Service) CleanupCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, cached := range s.cache {
		if s.now().Sub(cached.cachedAt) >= cacheTTL {
			delete(s.cache, key)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("🧹 [MEDIA] cache cleanup removed %d images, %d left", removed, len(s.cache))
	}
}

// RunCacheCleanup calls CleanupCache every interval until ctx is done.
func (s *Service) RunCacheCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupCache()
		}
	}
}

func (s *Service) forget(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}
