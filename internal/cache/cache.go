// Package cache keeps external API responses in a local SQLite file so that
// re-enriching after a reset does not hit the network again.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	// DefaultCacheTTL is the default time-to-live for cached entries (30 days)
	DefaultCacheTTL = 720 * time.Hour
	// NegativeCacheTTL is the TTL for "not found" responses (7 days)
	NegativeCacheTTL = 168 * time.Hour
)

// Source names one kind of cached response.
type Source string

const (
	// SourceSearch holds /search.json candidate lists keyed by title and author.
	SourceSearch Source = "openlibrary_search"
	// SourceWork holds work records keyed by work key.
	SourceWork Source = "openlibrary_work"
)

// Sources maps the names accepted by `cache invalidate` to the sources they clear.
var Sources = map[string][]Source{
	"openlibrary":        {SourceSearch, SourceWork},
	string(SourceSearch): {SourceSearch},
	string(SourceWork):   {SourceWork},
}

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	source     TEXT NOT NULL,
	cache_key  TEXT NOT NULL,
	data       TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (source, cache_key)
);
CREATE INDEX IF NOT EXISTS idx_responses_expires_at ON responses(expires_at);
`

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

// CacheDB is a TTL-bound key/value store of JSON documents.
type CacheDB struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (creating if needed) the cache at dbPath and drops expired
// entries. A non-positive ttl selects DefaultCacheTTL.
func Open(dbPath string, ttl time.Duration) (*CacheDB, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), db.Close())
	}

	c := &CacheDB{db: db, ttl: DefaultCacheTTL, now: func() time.Time { return time.Now().UTC() }}
	if ttl > 0 {
		c.ttl = ttl
	}
	if _, err := c.ClearExpired(context.Background()); err != nil {
		slog.Warn("Failed to prune expired cache entries", "error", err)
	}
	return c, nil
}

// TTL returns the default time-to-live for new entries.
func (c *CacheDB) TTL() time.Duration {
	return c.ttl
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	return c.db.Close()
}

// Get returns the live entry for key, or false when it is missing or expired.
func (c *CacheDB) Get(ctx context.Context, source Source, key string) (string, bool, error) {
	var data string
	err := c.db.GetContext(ctx, &data,
		`SELECT data FROM responses WHERE source = ? AND cache_key = ? AND expires_at > ?`,
		source, key, c.now())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}
	return data, true, nil
}

// Set stores data under key. A non-positive ttl uses the cache default.
func (c *CacheDB) Set(ctx context.Context, source Source, key, data string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (source, cache_key, data, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		source, key, data, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Invalidate deletes every entry of source and returns how many were removed.
func (c *CacheDB) Invalidate(ctx context.Context, source Source) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}
	rows, _ := res.RowsAffected()
	slog.Debug("Cache source cleared", "source", source, "rows_deleted", rows)
	return rows, nil
}

// ClearExpired removes expired entries of every source.
func (c *CacheDB) ClearExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE expires_at <= ?`, c.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired cache: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		slog.Info("Cleared expired cache entries", "count", rows)
	}
	return rows, nil
}

// GetOrFetch returns the cached value for key or fetches and stores it.
// A nil cache always fetches.
func GetOrFetch[T any](ctx context.Context, c *CacheDB, source Source, key string, fetch FetchFunc[T]) (T, bool, error) {
	return GetOrFetchWithTTL(ctx, c, source, key, fetch, nil)
}

// GetOrFetchWithTTL is GetOrFetch with a per-result TTL. ttlSelector runs on
// the fetched value; nil or a non-positive result uses the cache default.
// Cache failures are logged and never fail the call.
func GetOrFetchWithTTL[T any](ctx context.Context, c *CacheDB, source Source, key string, fetch FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	if c == nil {
		data, err := fetch()
		return data, false, err
	}

	cached, hit, err := c.Get(ctx, source, key)
	switch {
	case err != nil:
		slog.Warn("Cache lookup failed, fetching directly", "source", source, "error", err)
	case hit:
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "source", source, "key", key)
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "source", source, "key", key)
	}

	data, err := fetch()
	if err != nil {
		var zero T
		return zero, false, err
	}

	var ttl time.Duration
	if ttlSelector != nil {
		ttl = ttlSelector(data)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "source", source, "key", key, "error", err)
		return data, false, nil
	}
	if err := c.Set(ctx, source, key, string(encoded), ttl); err != nil {
		slog.Warn("Failed to cache data", "source", source, "key", key, "error", err)
	}
	return data, false, nil
}

// SelectNegativeCacheTTL returns a TTL selector that keeps "not found"
// results for NegativeCacheTTL and everything else for the cache default.
func SelectNegativeCacheTTL[T any](isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		if isNotFound(result) {
			return NegativeCacheTTL
		}
		return 0
	}
}
