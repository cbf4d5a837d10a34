package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/engage/internal/core"
)

// CacheRepo is the durable core.CacheService backed by sqlite. Writes fully
// replace the (namespace, key) row; expired rows read as absent and are
// reaped lazily.
type CacheRepo struct {
	db *sql.DB
}

func NewCacheRepo(db *sql.DB) *CacheRepo {
	return &CacheRepo{db: db}
}

func (r *CacheRepo) Get(ctx context.Context, namespace, key string) (*core.CacheEntry, error) {
	query := `SELECT data, metadata, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`

	var data []byte
	var metadata sql.NullString
	var expiresAt sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, namespace, key).Scan(&data, &metadata, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry := &core.CacheEntry{Data: data}
	if expiresAt.Valid {
		entry.Expiry = time.Unix(expiresAt.Int64, 0)
		if entry.Expiry.Before(time.Now()) {
			_ = r.Remove(ctx, namespace, key)
			return nil, nil
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			// A broken metadata blob degrades to a metadata-less entry.
			entry.Metadata = nil
		}
	}
	return entry, nil
}

func (r *CacheRepo) Set(ctx context.Context, namespace, key string, entry core.CacheEntry) error {
	var metadata any
	if len(entry.Metadata) > 0 {
		blob, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal cache metadata: %w", err)
		}
		metadata = string(blob)
	}

	var expiresAt any
	if !entry.Expiry.IsZero() {
		expiresAt = entry.Expiry.Unix()
	}

	query := `INSERT INTO cache_entries (namespace, key, data, metadata, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			data = excluded.data,
			metadata = excluded.metadata,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, namespace, key, entry.Data, metadata, expiresAt, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepo) Remove(ctx context.Context, namespace, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepo) RemoveNamespace(ctx context.Context, namespace string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("failed to remove cache namespace: %w", err)
	}
	return nil
}
