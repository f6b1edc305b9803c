package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_IssueOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(time.Hour)

	a, err := s.CSRFToken(ctx, "sid")
	require.NoError(t, err)
	b, err := s.CSRFToken(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := s.CSRFToken(ctx, "other")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestMemorySessionStore_Validate(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(time.Hour)

	tok, err := s.CSRFToken(ctx, "sid")
	require.NoError(t, err)

	assert.NoError(t, s.ValidateCSRF(ctx, "sid", tok))
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "sid", "forged"), common.ErrInvalidCSRFToken)
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "sid", ""), common.ErrInvalidCSRFToken)
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "unknown", tok), common.ErrInvalidCSRFToken)

	require.NoError(t, s.Drop(ctx, "sid"))
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "sid", tok), common.ErrInvalidCSRFToken)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	tok, err := s.CSRFToken(ctx, "sid")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "sid", tok), common.ErrInvalidCSRFToken)

	fresh, err := s.CSRFToken(ctx, "sid")
	require.NoError(t, err)
	assert.NotEqual(t, tok, fresh)
}

func TestMemorySessionStore_EmptySession(t *testing.T) {
	_, err := NewMemorySessionStore(time.Hour).CSRFToken(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, exp time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	f.ttls[key] = exp
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := newRedisSessionStore(fake, 30*time.Minute)

	a, err := s.CSRFToken(ctx, "sid")
	require.NoError(t, err)
	b, err := s.CSRFToken(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, a, b, "token is issued once per session")
	assert.Equal(t, 30*time.Minute, fake.ttls["docvault:csrf:sid"])

	assert.NoError(t, s.ValidateCSRF(ctx, "sid", a))
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "sid", "nope"), common.ErrInvalidCSRFToken)
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "missing", a), common.ErrInvalidCSRFToken)

	require.NoError(t, s.Drop(ctx, "sid"))
	assert.ErrorIs(t, s.ValidateCSRF(ctx, "sid", a), common.ErrInvalidCSRFToken)
}

func TestRequestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	rc := &RequestContext{Identity: Identity{UserID: 1, Role: common.RoleSuperAdmin}, IPAddress: "127.0.0.1"}
	got, ok := FromContext(WithRequestContext(context.Background(), rc))
	require.True(t, ok)
	assert.Same(t, rc, got)
	assert.True(t, got.IsAdmin())

	assert.False(t, (&RequestContext{Identity: Identity{Role: common.RoleUser}}).IsAdmin())
	assert.False(t, (*RequestContext)(nil).IsAdmin())
}
