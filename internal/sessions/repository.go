package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/salonmirai/sitesync/internal/content/repository"
)

// KeyPrefix namespaces session entries in the local cache.
const KeyPrefix = "salon_auth:"

// Repository provides session persistence operations
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// CacheRepository keeps sessions in the local cache (Redis in production)
// with a TTL matching the session expiry.
type CacheRepository struct {
	cache  repository.Cache
	prefix string
	now    func() time.Time
}

func NewCacheRepository(cache repository.Cache, prefix string) *CacheRepository {
	if prefix == "" {
		prefix = KeyPrefix
	}
	return &CacheRepository{cache: cache, prefix: prefix, now: time.Now}
}

func (r *CacheRepository) key(id string) string { return r.prefix + id }

func (r *CacheRepository) Create(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := s.ExpiresAt().Sub(r.now())
	if ttl <= 0 {
		// never store without a TTL
		ttl = time.Second
	}
	return r.cache.Set(ctx, r.key(s.ID), b, ttl)
}

// Get returns nil, nil for unknown sessions.
func (r *CacheRepository) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.cache.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	s.ID = id
	return &s, nil
}

func (r *CacheRepository) Delete(ctx context.Context, id string) error {
	return r.cache.Delete(ctx, r.key(id))
}
