package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLStorage_Roundtrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLStorage(ctx, newTestDB(t))
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("payload"), 0))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	// Set on an existing key replaces the payload.
	require.NoError(t, s.Set(ctx, "k", []byte("updated"), 0))
	got, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("updated"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStorage_Expiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLStorage(ctx, newTestDB(t))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 40*time.Millisecond))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// The expired row must have been reaped, not just masked.
	count, err := s.db.NewSelect().Model((*sqlEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLStorage_UpdateResetsExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLStorage(ctx, newTestDB(t))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 40*time.Millisecond))
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	time.Sleep(60 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "rewriting without a deadline must clear the old one")
}

func TestSQLStorage_DeleteAll(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLStorage(ctx, newTestDB(t))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, s.DeleteAll(ctx))

	count, err := s.db.NewSelect().Model((*sqlEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLFactory_CreatesTableOnResolve(t *testing.T) {
	db := newTestDB(t)
	s, err := SQLFactory(db).New()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestSQLStorage_Close(t *testing.T) {
	sqldb, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	s, err := NewSQLStorage(ctx, db)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.Error(t, s.Set(ctx, "k", []byte("v"), 0), "a closed store must reject writes")
}
