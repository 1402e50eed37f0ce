package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_Roundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok, "a miss must not be an error")

	require.NoError(t, s.Set(ctx, "k", []byte("payload"), 0))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Idempotent delete.
	require.NoError(t, s.Delete(ctx, "k"))
}

func TestMemoryStorage_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 40*time.Millisecond))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "entry must be readable before the deadline")

	time.Sleep(60 * time.Millisecond)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry must read as absent after the deadline")
}

func TestMemoryStorage_GetReturnsIndependentBytes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Set(ctx, "k", []byte("payload"), 0))

	first, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	for i := range first {
		first[i] = 'x'
	}

	second, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), second, "mutating a returned slice must not corrupt the stored entry")
}

func TestMemoryStorage_DeleteAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, s.DeleteAll(ctx))

	for _, key := range []string{"a", "b"} {
		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
