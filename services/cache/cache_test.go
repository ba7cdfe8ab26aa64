package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core"
)

type stats struct {
	Total int `json:"total"`
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	client, mock := redismock.NewClientMock()
	c := NewRedisCache(client, conf)
	key := conf.AppName + ":dashboard"

	mock.ExpectSet(key, []byte(`{"total":3}`), time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "dashboard", stats{Total: 3}, time.Minute))

	mock.ExpectGet(key).SetVal(`{"total":3}`)
	var got stats
	require.NoError(t, c.Get(ctx, "dashboard", &got))
	assert.Equal(t, stats{Total: 3}, got)

	mock.ExpectDel(key).SetVal(1)
	require.NoError(t, c.Delete(ctx, "dashboard"))

	mock.ExpectGet(key).RedisNil()
	assert.Equal(t, core.ErrCacheMiss, c.Get(ctx, "dashboard", &got))

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	err := c.Get(ctx, "dashboard", &got)
	require.Error(t, err)
	assert.NotEqual(t, core.ErrCacheMiss, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var got stats
	assert.Equal(t, core.ErrCacheMiss, c.Get(ctx, "k", &got))

	require.NoError(t, c.Set(ctx, "k", stats{Total: 1}, 0))
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got.Total)

	require.NoError(t, c.Set(ctx, "expired", stats{Total: 2}, time.Nanosecond))
	time.Sleep(time.Millisecond)
	assert.Equal(t, core.ErrCacheMiss, c.Get(ctx, "expired", &got))
	assert.NotContains(t, c.(*memoryCache).items, "expired", "expired entries are evicted on read")

	require.NoError(t, c.Set(ctx, "unread", stats{Total: 3}, time.Nanosecond))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "other", stats{Total: 4}, time.Minute))
	assert.NotContains(t, c.(*memoryCache).items, "unread", "expired entries are evicted on write")
	assert.Contains(t, c.(*memoryCache).items, "other")
	assert.Contains(t, c.(*memoryCache).items, "k")

	require.NoError(t, c.Delete(ctx, "k"))
	assert.Equal(t, core.ErrCacheMiss, c.Get(ctx, "k", &got))
}
