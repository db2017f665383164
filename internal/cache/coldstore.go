package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	cacheerr "github.com/stratacache/stratacache/pkg/errors"
	"github.com/stratacache/stratacache/pkg/types"
)

// coldDB is the subset of pgxpool.Pool the cold store uses; narrowed so
// tests can fake it.
type coldDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresColdStore is the tier 4 adapter: durable relational persistence
// keyed on (cache_key, tenant_id). The slowest, last-resort tier.
type PostgresColdStore struct {
	db    coldDB
	table string
}

// NewPostgresColdStore creates a cold store over the given pool. table
// defaults to "cache_entries".
func NewPostgresColdStore(db coldDB, table string) *PostgresColdStore {
	if table == "" {
		table = "cache_entries"
	}
	return &PostgresColdStore{db: db, table: table}
}

// EnsureSchema creates the backing table when it does not exist.
func (s *PostgresColdStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		cache_key        TEXT NOT NULL,
		cache_data       BYTEA NOT NULL,
		tenant_id        TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		last_accessed    TIMESTAMPTZ NOT NULL,
		access_count     BIGINT NOT NULL DEFAULT 0,
		importance_score DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (cache_key, tenant_id)
	)`, s.table)

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return s.fault("ensure_schema", err)
	}
	return nil
}

// Get returns the entry for (key, tenant), refreshing last_accessed and
// access_count in the same statement.
func (s *PostgresColdStore) Get(ctx context.Context, key, tenantID string) (*types.CacheEntry, error) {
	query := fmt.Sprintf(`UPDATE %s
		SET last_accessed = $3, access_count = access_count + 1
		WHERE cache_key = $1 AND tenant_id = $2
		RETURNING cache_data, created_at, last_accessed, access_count, importance_score`, s.table)

	entry := &types.CacheEntry{
		Key:        key,
		TenantID:   tenantID,
		TierOrigin: types.TierCold,
	}
	err := s.db.QueryRow(ctx, query, key, tenantID, time.Now().UTC()).
		Scan(&entry.Value, &entry.CreatedAt, &entry.LastAccessed, &entry.AccessCount, &entry.ImportanceScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cacheerr.New(cacheerr.CodeNotFound, "key not found").
				WithComponent("cold_store").WithOperation("get")
		}
		return nil, s.fault("get", err)
	}

	entry.SizeBytes = int64(len(entry.Value))
	return entry, nil
}

// Upsert inserts or updates the entry in one atomic statement.
func (s *PostgresColdStore) Upsert(ctx context.Context, entry *types.CacheEntry) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(cache_key, cache_data, tenant_id, created_at, last_accessed, importance_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key, tenant_id) DO UPDATE SET
			cache_data = EXCLUDED.cache_data,
			last_accessed = EXCLUDED.last_accessed,
			importance_score = EXCLUDED.importance_score`, s.table)

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	lastAccessed := entry.LastAccessed
	if lastAccessed.IsZero() {
		lastAccessed = createdAt
	}

	_, err := s.db.Exec(ctx, query,
		entry.Key, entry.Value, entry.TenantID, createdAt, lastAccessed, entry.ImportanceScore)
	if err != nil {
		return s.fault("upsert", err)
	}
	return nil
}

// Delete removes the entry for (key, tenant). Returns true if a row was
// removed.
func (s *PostgresColdStore) Delete(ctx context.Context, key, tenantID string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1 AND tenant_id = $2`, s.table)

	tag, err := s.db.Exec(ctx, query, key, tenantID)
	if err != nil {
		return false, s.fault("delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Sweep removes entries that are both older than maxAge and less important
// than minImportance. An old-but-important entry survives.
func (s *PostgresColdStore) Sweep(ctx context.Context, maxAge time.Duration, minImportance float64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s
		WHERE last_accessed < $1 AND importance_score < $2`, s.table)

	cutoff := time.Now().UTC().Add(-maxAge)
	tag, err := s.db.Exec(ctx, query, cutoff, minImportance)
	if err != nil {
		return 0, s.fault("sweep", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresColdStore) fault(op string, err error) error {
	return cacheerr.New(cacheerr.CodeColdStore, "cold store failure").
		WithComponent("cold_store").WithOperation(op).WithCause(err)
}

var _ types.ColdStore = (*PostgresColdStore)(nil)
