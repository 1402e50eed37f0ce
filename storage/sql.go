package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/uptrace/bun"
)

// sqlEntry is the row model for SQL-backed storage. Expiry metadata is
// stored alongside the payload and checked on read; expired rows are reaped
// lazily like the other metadata-based backends.
type sqlEntry struct {
	bun.BaseModel `bun:"table:cachex_entries,alias:ce"`

	Key       string     `bun:"key,pk"`
	Data      []byte     `bun:"data,notnull"`
	ExpiresAt *time.Time `bun:"expires_at"`
}

func (e *sqlEntry) expired() bool {
	return e.ExpiresAt != nil && !time.Now().Before(*e.ExpiresAt)
}

// SQLStorage stores entries in a relational database through bun. Any
// dialect bun supports works; tests and examples use SQLite.
type SQLStorage struct {
	db *bun.DB
}

var (
	_ Storage   = (*SQLStorage)(nil)
	_ io.Closer = (*SQLStorage)(nil)
)

// NewSQLStorage wraps a bun database handle and ensures the backing table
// exists.
func NewSQLStorage(ctx context.Context, db *bun.DB) (*SQLStorage, error) {
	_, err := db.NewCreateTable().
		Model((*sqlEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: create cachex_entries table: %w", err)
	}
	return &SQLStorage{db: db}, nil
}

func (s *SQLStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry := new(sqlEntry)
	err := s.db.NewSelect().
		Model(entry).
		Where("?TableAlias.? = ?", bun.Ident("key"), key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("storage: sql get: %w", err)
	}
	if entry.expired() {
		_, _ = s.db.NewDelete().
			Model((*sqlEntry)(nil)).
			Where("? = ?", bun.Ident("key"), key).
			Exec(ctx)
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (s *SQLStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	entry := &sqlEntry{Key: key, Data: value}
	if expiresIn > 0 {
		at := time.Now().Add(expiresIn)
		entry.ExpiresAt = &at
	}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (?) DO UPDATE", bun.Ident("key")).
		Set("data = EXCLUDED.data").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: sql set: %w", err)
	}
	return nil
}

func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*sqlEntry)(nil)).
		Where("? = ?", bun.Ident("key"), key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: sql delete: %w", err)
	}
	return nil
}

func (s *SQLStorage) DeleteAll(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*sqlEntry)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: sql delete all: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// SQLFactory returns a factory wrapping the given bun handle. The table is
// created when the factory first resolves.
func SQLFactory(db *bun.DB) Factory {
	return Factory{
		ID: "storage.SQLFactory",
		New: func() (Storage, error) {
			return NewSQLStorage(context.Background(), db)
		},
	}
}
