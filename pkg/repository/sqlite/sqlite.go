// Package sqlite is the durable EntityStore backed by a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/repository"
	"github.com/secmon-lab/devlink/pkg/utils/safe"

	_ "modernc.org/sqlite"
)

// Store implements interfaces.EntityStore.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, types.WrapAs(types.ErrStorageUnavailable, err, "failed to create database directory",
				goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr(err, "failed to open sqlite", goerr.V("path", dbPath))
	}
	// One connection keeps PRAGMAs and transactions on the same handle.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			safe.Close(db)
			return nil, storageErr(err, "failed to apply pragma", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		safe.Close(db)
		return nil, storageErr(err, "failed to migrate schema", goerr.V("path", dbPath))
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func storageErr(err error, msg string, values ...goerr.Option) error {
	return types.WrapAs(types.ErrStorageUnavailable, err, msg, values...)
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// withTx runs fn in one transaction under the store-wide write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "failed to begin transaction")
	}
	defer safe.Rollback(tx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr(err, "failed to commit transaction")
	}
	return nil
}

func markFetched(ctx context.Context, tx *sql.Tx, kind model.ScopeKind, scopeKey string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO scope_fetches (kind, scope_key, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(kind, scope_key) DO UPDATE SET fetched_at = MAX(scope_fetches.fetched_at, excluded.fetched_at)`,
		string(kind), scopeKey, toUnix(at))
	if err != nil {
		return storageErr(err, "failed to write fetch marker", goerr.V("kind", kind), goerr.V("scope", scopeKey))
	}
	return nil
}

func unmarkFetched(ctx context.Context, tx *sql.Tx, kind model.ScopeKind, scopeKey string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM scope_fetches WHERE kind = ? AND scope_key = ?`, string(kind), scopeKey); err != nil {
		return storageErr(err, "failed to delete fetch marker", goerr.V("kind", kind), goerr.V("scope", scopeKey))
	}
	return nil
}

func (s *Store) ScopeFetchedAt(ctx context.Context, kind model.ScopeKind, scopeKey string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM scope_fetches WHERE kind = ? AND scope_key = ?`,
		string(kind), scopeKey).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "failed to read fetch marker", goerr.V("kind", kind), goerr.V("scope", scopeKey))
	}
	t := fromUnix(v)
	return &t, nil
}

func (s *Store) lastFetch(ctx context.Context, query string, args ...any) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return nil, storageErr(err, "failed to read last fetch time")
	}
	if !v.Valid {
		return nil, nil
	}
	t := fromUnix(v.Int64)
	return &t, nil
}

func validationErr(err error, msg string, scope string) error {
	return types.WrapAs(repository.ErrInvalidInput, err, msg, goerr.V("scope", scope))
}
