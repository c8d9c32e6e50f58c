package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Lucaascf/coleta-produtos/dbopen"
)

// PriceRecord is one observed price for a product.
type PriceRecord struct {
	ProductID  string    `json:"product_id"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// RecordPrice appends a history record when price differs from the latest
// stored one. Re-recording an unchanged price is a no-op, so re-scraping
// never grows history. The check and append run in one busy-retrying
// transaction: parallel sessions observing the same product must not
// both see the stale latest and double-append. Returns whether a record
// was appended.
func (s *Store) RecordPrice(ctx context.Context, productID string, price float64) (bool, error) {
	appended := false
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		var latest float64
		err := tx.QueryRowContext(ctx,
			`SELECT price FROM price_history WHERE product_id = ?
			ORDER BY observed_at DESC, rowid DESC LIMIT 1`, productID).Scan(&latest)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		case latest == price:
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO price_history (id, product_id, price, observed_at)
			VALUES (?, ?, ?, ?)`,
			uuid.NewString(), productID, price, s.cfg.Now().UnixMilli()); err != nil {
			return err
		}
		appended = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: record price %s: %v", ErrWrite, productID, err)
	}
	return appended, nil
}

// LatestPrice returns the most recently observed price for a product.
func (s *Store) LatestPrice(ctx context.Context, productID string) (float64, bool, error) {
	var price float64
	err := s.DB.QueryRowContext(ctx,
		`SELECT price FROM price_history WHERE product_id = ?
		ORDER BY observed_at DESC, rowid DESC LIMIT 1`, productID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache: latest price %s: %w", productID, err)
	}
	return price, true, nil
}

// PriceHistory returns a product's observed prices, newest first.
func (s *Store) PriceHistory(ctx context.Context, productID string, limit int) ([]PriceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT product_id, price, observed_at FROM price_history
		WHERE product_id = ? ORDER BY observed_at DESC, rowid DESC LIMIT ?`,
		productID, limit)
	if err != nil {
		return nil, fmt.Errorf("cache: price history %s: %w", productID, err)
	}
	defer rows.Close()

	var result []PriceRecord
	for rows.Next() {
		var r PriceRecord
		var observed int64
		if err := rows.Scan(&r.ProductID, &r.Price, &observed); err != nil {
			return nil, fmt.Errorf("cache: scan price history: %w", err)
		}
		r.ObservedAt = time.UnixMilli(observed)
		result = append(result, r)
	}
	return result, rows.Err()
}

// CleanupHistory deletes history older than the given age. This is the
// only path that removes history records.
func (s *Store) CleanupHistory(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.cfg.Now().Add(-olderThan).UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM price_history WHERE observed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: cleanup history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
