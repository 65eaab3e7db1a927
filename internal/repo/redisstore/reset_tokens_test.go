package redisstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*ResetTokens, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewResetTokens(client, nil), mr
}

func TestResetTokens_ConsumeOnce(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(time.Hour)))
	assert.True(t, mr.Exists(tokenKeyPrefix+"digest-a"))

	id, err := store.ConsumeResetToken(ctx, "digest-a", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = store.ConsumeResetToken(ctx, "digest-a", now)
	assert.ErrorIs(t, err, user.ErrResetTokenNotFound)
	assert.False(t, mr.Exists(userKeyPrefix+"u1"))
}

func TestResetTokens_NewTokenEvictsOld(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(time.Hour)))
	require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-b", now.Add(time.Hour)))

	assert.False(t, mr.Exists(tokenKeyPrefix+"digest-a"))

	_, err := store.ConsumeResetToken(ctx, "digest-a", now)
	assert.ErrorIs(t, err, user.ErrResetTokenNotFound)

	id, err := store.ConsumeResetToken(ctx, "digest-b", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestResetTokens_Expiry(t *testing.T) {
	t.Run("ttl elapsed in redis", func(t *testing.T) {
		store, mr := setupTestRedis(t)
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(time.Hour)))
		mr.FastForward(time.Hour + ttlGrace + time.Second)

		_, err := store.ConsumeResetToken(ctx, "digest-a", now)
		assert.ErrorIs(t, err, user.ErrResetTokenNotFound)
	})

	t.Run("caller clock past expiry", func(t *testing.T) {
		store, _ := setupTestRedis(t)
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(time.Hour)))

		_, err := store.ConsumeResetToken(ctx, "digest-a", now.Add(time.Hour))
		assert.ErrorIs(t, err, user.ErrResetTokenNotFound)
	})

	t.Run("already expired on save", func(t *testing.T) {
		store, _ := setupTestRedis(t)
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(-time.Minute)))

		_, err := store.ConsumeResetToken(ctx, "digest-a", now)
		assert.ErrorIs(t, err, user.ErrResetTokenNotFound)
	})

	t.Run("store clock ahead of caller", func(t *testing.T) {
		store, mr := setupTestRedis(t)
		ctx := context.Background()
		now := time.Now()
		store.now = func() time.Time { return now.Add(2 * time.Hour) }

		require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(time.Hour)))
		assert.True(t, mr.Exists(tokenKeyPrefix+"digest-a"))

		id, err := store.ConsumeResetToken(ctx, "digest-a", now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "u1", id)
	})

	t.Run("ttl outlives logical expiry", func(t *testing.T) {
		store, mr := setupTestRedis(t)
		ctx := context.Background()
		now := time.Now()
		store.now = func() time.Time { return now }

		require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(time.Hour)))

		ttl := mr.TTL(tokenKeyPrefix + "digest-a")
		assert.Equal(t, time.Hour+ttlGrace, ttl)
	})
}

func TestResetTokens_ConcurrentSavesLeaveOneLiveToken(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.SaveResetToken(ctx, "u1", fmt.Sprintf("digest-%d", i), expires)
		}(i)
	}
	wg.Wait()

	var live []string
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, tokenKeyPrefix) {
			live = append(live, strings.TrimPrefix(key, tokenKeyPrefix))
		}
	}
	require.Len(t, live, 1)

	pointer, err := mr.Get(userKeyPrefix + "u1")
	require.NoError(t, err)
	assert.Equal(t, live[0], pointer)
}

func TestResetTokens_ConsumeKeepsNewerUserPointer(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveResetToken(ctx, "u1", "digest-a", now.Add(time.Hour)))

	// a save for digest-b lands after digest-a was read but before its pointer is released
	require.NoError(t, mr.Set(tokenKeyPrefix+"digest-b", `{"userId":"u1","expiresAt":"2999-01-01T00:00:00Z"}`))
	require.NoError(t, mr.Set(userKeyPrefix+"u1", "digest-b"))

	id, err := store.ConsumeResetToken(ctx, "digest-a", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	pointer, err := mr.Get(userKeyPrefix + "u1")
	require.NoError(t, err)
	assert.Equal(t, "digest-b", pointer)

	id, err = store.ConsumeResetToken(ctx, "digest-b", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	assert.False(t, mr.Exists(userKeyPrefix+"u1"))
}
