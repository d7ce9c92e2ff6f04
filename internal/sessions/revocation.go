package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/salonmirai/sitesync/internal/content/repository"
	"github.com/salonmirai/sitesync/pkg/middleware"
)

// Revocations remembers logged-out bearer tokens until they would have
// expired anyway. Session tokens are also invalidated by deleting their
// session; this covers tokens from an external identity provider.
type Revocations struct {
	cache  repository.Cache
	prefix string
}

func NewRevocations(cache repository.Cache) *Revocations {
	return &Revocations{cache: cache, prefix: "salon_revoked:"}
}

func (r *Revocations) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Revoke stores token for ttl. A non-positive ttl is a no-op.
func (r *Revocations) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, r.key(token), []byte("1"), ttl)
}

func (r *Revocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	_, err := r.cache.Get(ctx, r.key(token))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrCacheMiss):
		return false, nil
	}
	return false, err
}

// Guard wraps a verifier so revoked tokens are rejected before verification.
func (r *Revocations) Guard(v middleware.Verifier) middleware.Verifier {
	return guarded{rev: r, next: v}
}

type guarded struct {
	rev  *Revocations
	next middleware.Verifier
}

var ErrRevoked = errors.New("token has been revoked")

func (g guarded) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	revoked, err := g.rev.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return g.next.Verify(ctx, raw)
}
