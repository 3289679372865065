package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_TokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	require.NoError(t, s.PutToken(ctx, "reset", "abc", "user-1", time.Hour))

	v, err := s.TakeToken(ctx, "reset", "abc")
	require.NoError(t, err)
	assert.Equal(t, "user-1", v)

	_, err = s.TakeToken(ctx, "reset", "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLocalStore_TokenExpires(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	require.NoError(t, s.PutToken(ctx, "reset", "abc", "user-1", time.Minute))
	clock = clock.Add(2 * time.Minute)

	_, err := s.TakeToken(ctx, "reset", "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLocalStore_CacheInvalidateByPattern(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	require.NoError(t, s.SetCache(ctx, "benefits:all", []string{"a"}, 0))
	require.NoError(t, s.SetCache(ctx, "benefits:key_access", []string{"b"}, 0))
	require.NoError(t, s.SetCache(ctx, "content:all", []string{"c"}, 0))

	require.NoError(t, s.InvalidateCache(ctx, "benefits:*"))

	var got []string
	assert.ErrorIs(t, s.GetCache(ctx, "benefits:all", &got), ErrCacheMiss)
	require.NoError(t, s.GetCache(ctx, "content:all", &got))
	assert.Equal(t, []string{"c"}, got)
}
