package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	now = now.Add(24 * time.Hour)

	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryStoreCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestNewBackends(t *testing.T) {
	s, err := New(Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(Config{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = New(Config{Backend: "memcached"})
	assert.Error(t, err)

	_, err = New(Config{Backend: "redis", RedisURL: "not a url"})
	assert.Error(t, err)
}

func TestMemoryStoreSweepsOnWrite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Set(ctx, k, []byte(k), time.Second))
	}
	require.NoError(t, m.Set(ctx, "kept", []byte("kept"), 0))
	assert.Equal(t, 4, m.Len())

	now = now.Add(sweepInterval)
	require.NoError(t, m.Set(ctx, "d", []byte("d"), time.Second))
	assert.Equal(t, 2, m.Len())
}
