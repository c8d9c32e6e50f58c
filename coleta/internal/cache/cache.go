// Package cache persists query results, price history, and selector
// performance in SQLite so repeated queries skip the network and selector
// learning survives process restarts.
//
// Concurrency: the database runs in WAL mode (see dbopen), so readers
// never observe a half-deleted entry while SweepExpired runs. Same-key
// writes resolve last-writer-wins.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lucaascf/coleta-produtos/produto"
)

// ErrMiss is returned by Get for absent and expired entries alike.
var ErrMiss = errors.New("cache: miss")

// ErrWrite wraps persistence failures. Callers degrade to memory-only
// operation instead of aborting: caching is an optimization, not a
// correctness requirement.
var ErrWrite = errors.New("cache: write failed")

// DefaultTTL is how long a cached query result stays live.
const DefaultTTL = 2 * time.Hour

// Config configures the store.
type Config struct {
	// TTL for query-result entries. Default: 2h.
	TTL time.Duration
	// Now overrides the clock in tests. Default: time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store wraps the cache database. Hit/miss counters are per-run, in
// memory; everything else is durable.
type Store struct {
	DB  *sql.DB
	cfg Config

	mu     sync.Mutex
	hits   int64
	misses int64
}

// New creates a Store from an already-opened database. Apply Schema via
// dbopen.WithSchema when opening.
func New(db *sql.DB, cfg Config) *Store {
	cfg.defaults()
	return &Store{DB: db, cfg: cfg}
}

// Entry is a cached query result.
type Entry struct {
	Key       string
	Products  []produto.Product
	CreatedAt time.Time
}

// Get returns the live entry for key, or ErrMiss. Expired entries are
// logically dead on read; physical removal is SweepExpired's job.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	var payload string
	var createdAt, expiresAt int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT payload, created_at, expires_at FROM search_cache WHERE cache_key = ?`,
		key).Scan(&payload, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		s.count(false)
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %q: %w", key, err)
	}

	if s.cfg.Now().UnixMilli() >= expiresAt {
		s.count(false)
		return nil, ErrMiss
	}

	var products []produto.Product
	if err := json.Unmarshal([]byte(payload), &products); err != nil {
		return nil, fmt.Errorf("cache: decode %q: %w", key, err)
	}

	s.count(true)
	return &Entry{
		Key:       key,
		Products:  products,
		CreatedAt: time.UnixMilli(createdAt),
	}, nil
}

// Put stores products under key, overwriting any existing entry with a
// fresh created_at.
func (s *Store) Put(ctx context.Context, key string, products []produto.Product) error {
	payload, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", ErrWrite, key, err)
	}
	now := s.cfg.Now()
	_, err = s.DB.ExecContext(ctx,
		`INSERT OR REPLACE INTO search_cache
		(cache_key, payload, product_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		key, string(payload), len(products),
		now.UnixMilli(), now.Add(s.cfg.TTL).UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrWrite, key, err)
	}
	return nil
}

// Delete removes a single entry. Explicit cache-clear path.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM search_cache WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("%w: delete %q: %v", ErrWrite, key, err)
	}
	return nil
}

// SweepExpired physically deletes entries past their TTL. Safe to call
// concurrently with reads.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM search_cache WHERE expires_at <= ?`, s.cfg.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache: sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.cfg.Logger.Debug("cache: swept expired entries", "count", n)
	}
	return int(n), nil
}

func (s *Store) count(hit bool) {
	s.mu.Lock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()
}

// Stats is a read-only snapshot of cache effectiveness.
type Stats struct {
	HitRate                 float64            `json:"hit_rate"`
	TotalEntries            int                `json:"total_entries"`
	HistoryRecords          int                `json:"history_records"`
	TrackedProducts         int                `json:"tracked_products"`
	SelectorAccuracyByField map[string]float64 `json:"selector_accuracy_by_field"`
}

// Stats reports hit rate (this run), live entry count, history volume,
// and per-field selector accuracy. Side-effect-free.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{SelectorAccuracyByField: map[string]float64{}}

	s.mu.Lock()
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	s.mu.Unlock()

	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_cache WHERE expires_at > ?`,
		s.cfg.Now().UnixMilli()).Scan(&st.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_history`).Scan(&st.HistoryRecords); err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT product_id) FROM price_history`).Scan(&st.TrackedProducts); err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT field_name, SUM(success_count), SUM(success_count + failure_count)
		FROM selector_performance GROUP BY field_name`)
	if err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var field string
		var succ, total int64
		if err := rows.Scan(&field, &succ, &total); err != nil {
			return nil, fmt.Errorf("cache: scan selector stats: %w", err)
		}
		if total > 0 {
			st.SelectorAccuracyByField[field] = float64(succ) / float64(total)
		}
	}
	return st, rows.Err()
}
