package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	rkeys "github.com/teamfaces/teamfaces/pkg/redis"
)

// Denylist records revoked token IDs until the token would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// ResetTokens stores single-use password reset tokens.
type ResetTokens interface {
	Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	// Take returns the user for token and deletes it; ErrResetTokenInvalid when absent or expired.
	Take(ctx context.Context, token string) (uuid.UUID, error)
}

// RedisDenylist keeps revoked JWT IDs as expiring keys.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist creates a Redis-backed denylist.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, rkeys.Key("jwt", "revoked", jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, rkeys.Key("jwt", "revoked", jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// RedisResetTokens keeps reset tokens as expiring keys consumed with GETDEL.
type RedisResetTokens struct {
	client *redis.Client
}

// NewRedisResetTokens creates a Redis-backed reset token store.
func NewRedisResetTokens(client *redis.Client) *RedisResetTokens {
	return &RedisResetTokens{client: client}
}

func (r *RedisResetTokens) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	if err := r.client.Set(ctx, rkeys.Key("auth", "reset", token), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func (r *RedisResetTokens) Take(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := r.client.GetDel(ctx, rkeys.Key("auth", "reset", token)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrResetTokenInvalid
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("take reset token: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrResetTokenInvalid
	}
	return id, nil
}

type expiring struct {
	value   string
	expires time.Time
}

// MemoryTokens implements Denylist and ResetTokens in process.
type MemoryTokens struct {
	mu    sync.Mutex
	items map[string]expiring
	now   func() time.Time
}

// NewMemoryTokens creates an empty in-process token store.
func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{items: make(map[string]expiring), now: time.Now}
}

func (m *MemoryTokens) put(key, value string, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = expiring{value: value, expires: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *MemoryTokens) get(key string, remove bool) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return "", false
	}
	if !m.now().Before(it.expires) {
		delete(m.items, key)
		return "", false
	}
	if remove {
		delete(m.items, key)
	}
	return it.value, true
}

func (m *MemoryTokens) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl > 0 {
		m.put("revoked:"+jti, "1", ttl)
	}
	return nil
}

func (m *MemoryTokens) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := m.get("revoked:"+jti, false)
	return ok, nil
}

func (m *MemoryTokens) Save(_ context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	m.put("reset:"+token, userID.String(), ttl)
	return nil
}

func (m *MemoryTokens) Take(_ context.Context, token string) (uuid.UUID, error) {
	val, ok := m.get("reset:"+token, true)
	if !ok {
		return uuid.Nil, ErrResetTokenInvalid
	}
	return uuid.Parse(val)
}
