package cache

// Schema defines the three cache regions: query-result cache, append-only
// price history, and selector performance counters. Timestamps are unix
// milliseconds.
const Schema = `
-- Query-result cache (lazy TTL expiry on read, physical delete on sweep)
CREATE TABLE IF NOT EXISTS search_cache (
    cache_key     TEXT PRIMARY KEY,
    payload       TEXT NOT NULL,
    product_count INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL,
    expires_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_cache_expiry ON search_cache(expires_at);

-- Price history: append-only, one row per observed price change
CREATE TABLE IF NOT EXISTS price_history (
    id          TEXT PRIMARY KEY,
    product_id  TEXT NOT NULL,
    price       REAL NOT NULL,
    observed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_history_product
    ON price_history(product_id, observed_at DESC);

-- Selector performance: learning state that survives restarts
CREATE TABLE IF NOT EXISTS selector_performance (
    field_name      TEXT NOT NULL,
    descriptor      TEXT NOT NULL,
    success_count   INTEGER NOT NULL DEFAULT 0,
    failure_count   INTEGER NOT NULL DEFAULT 0,
    last_used_at    INTEGER NOT NULL,
    last_success_at INTEGER,
    PRIMARY KEY (field_name, descriptor)
);
`
