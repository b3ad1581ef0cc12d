package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "session:revoked:"

// RevocationList remembers sessions that were logged out before expiry.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// RedisRevocationList stores revoked session ids as expiring Redis keys.
type RedisRevocationList struct {
	cache *redis.Client
}

// NewRedisRevocationList builds a Redis-backed revocation list.
func NewRedisRevocationList(cache *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{cache: cache}
}

func (r *RedisRevocationList) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	return r.cache.Set(ctx, revokedPrefix+sessionID, 1, ttl).Err()
}

func (r *RedisRevocationList) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.cache.Exists(ctx, revokedPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type memoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList builds a process-local revocation list.
func NewMemoryRevocationList() RevocationList {
	return &memoryRevocationList{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *memoryRevocationList) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[sessionID] = m.now().Add(ttl)
	return nil
}

func (m *memoryRevocationList) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if m.now().After(exp) {
		delete(m.revoked, sessionID)
		return false, nil
	}
	return true, nil
}
