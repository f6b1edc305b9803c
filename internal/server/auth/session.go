package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/redis/go-redis/v9"
)

// SessionStore holds one CSRF token per login session.
type SessionStore interface {
	// CSRFToken returns the session token, issuing it on first use.
	CSRFToken(ctx context.Context, sessionID string) (string, error)
	// ValidateCSRF returns common.ErrInvalidCSRFToken unless token matches.
	ValidateCSRF(ctx context.Context, sessionID, token string) error
	// Drop forgets the session.
	Drop(ctx context.Context, sessionID string) error
}

type memorySession struct {
	token   string
	expires time.Time
}

// MemorySessionStore keeps sessions in process memory. Suitable for a single
// server instance.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) CSRFToken(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", common.ErrorUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[sessionID]; ok && now.Before(sess.expires) {
		return sess.token, nil
	}

	tok, err := cryptox.NewCSRFToken()
	if err != nil {
		return "", err
	}
	s.sessions[sessionID] = memorySession{token: tok, expires: now.Add(s.ttl)}
	s.gcLocked(now)
	return tok, nil
}

func (s *MemorySessionStore) ValidateCSRF(_ context.Context, sessionID, token string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok || !s.now().Before(sess.expires) || !cryptox.ValidCSRFToken(sess.token, token) {
		return common.ErrInvalidCSRFToken
	}
	return nil
}

func (s *MemorySessionStore) Drop(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) gcLocked(now time.Time) {
	for id, sess := range s.sessions {
		if !now.Before(sess.expires) {
			delete(s.sessions, id)
		}
	}
}

// redisClient is the part of redis.Cmdable the session store uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisSessionStore shares sessions between server instances.
type RedisSessionStore struct {
	rdb    redisClient
	ttl    time.Duration
	prefix string
}

// NewRedisSessionStore connects to addr and pings it once.
func NewRedisSessionStore(ctx context.Context, addr string, ttl time.Duration) (*RedisSessionStore, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisSessionStore(rdb, ttl), rdb, nil
}

func newRedisSessionStore(rdb redisClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl, prefix: "docvault:csrf:"}
}

func (s *RedisSessionStore) CSRFToken(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", common.ErrorUnauthorized
	}

	tok, err := cryptox.NewCSRFToken()
	if err != nil {
		return "", err
	}

	key := s.prefix + sessionID
	if err := s.rdb.SetNX(ctx, key, tok, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: redis setnx: %v", common.ErrorInternal, err)
	}

	// Whichever request set the key first wins.
	current, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("%w: redis get: %v", common.ErrorInternal, err)
	}
	return current, nil
}

func (s *RedisSessionStore) ValidateCSRF(ctx context.Context, sessionID, token string) error {
	expected, err := s.rdb.Get(ctx, s.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return common.ErrInvalidCSRFToken
		}
		return fmt.Errorf("%w: redis get: %v", common.ErrorInternal, err)
	}
	if !cryptox.ValidCSRFToken(expected, token) {
		return common.ErrInvalidCSRFToken
	}
	return nil
}

func (s *RedisSessionStore) Drop(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", common.ErrorInternal, err)
	}
	return nil
}
