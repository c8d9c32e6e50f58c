package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lucaascf/coleta-produtos/dbopen"
)

// SelectorStat is one persisted strategy counter row.
type SelectorStat struct {
	Field         string
	Descriptor    string
	SuccessCount  int
	FailureCount  int
	LastUsedAt    time.Time
	LastSuccessAt time.Time // zero when the strategy never succeeded
}

// SelectorOutcome upserts one attempt outcome for a field/strategy pair.
// Runs inside a busy-retrying transaction: parallel sessions report into
// the same table.
func (s *Store) SelectorOutcome(ctx context.Context, field, descriptor string, success bool) error {
	now := s.cfg.Now().UnixMilli()
	succ, fail := 0, 1
	if success {
		succ, fail = 1, 0
	}
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE selector_performance
			SET success_count = success_count + ?,
			    failure_count = failure_count + ?,
			    last_used_at = ?,
			    last_success_at = CASE WHEN ? THEN ? ELSE last_success_at END
			WHERE field_name = ? AND descriptor = ?`,
			succ, fail, now, success, now, field, descriptor)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		var lastSuccess any
		if success {
			lastSuccess = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO selector_performance
			(field_name, descriptor, success_count, failure_count, last_used_at, last_success_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			field, descriptor, succ, fail, now, lastSuccess)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: selector outcome %s/%s: %v", ErrWrite, field, descriptor, err)
	}
	return nil
}

// LoadSelectorStats returns all persisted strategy counters, used to seed
// the detector on startup.
func (s *Store) LoadSelectorStats(ctx context.Context) ([]SelectorStat, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT field_name, descriptor, success_count, failure_count,
		last_used_at, last_success_at
		FROM selector_performance`)
	if err != nil {
		return nil, fmt.Errorf("cache: load selector stats: %w", err)
	}
	defer rows.Close()

	var result []SelectorStat
	for rows.Next() {
		var st SelectorStat
		var used int64
		var succAt sql.NullInt64
		if err := rows.Scan(&st.Field, &st.Descriptor, &st.SuccessCount,
			&st.FailureCount, &used, &succAt); err != nil {
			return nil, fmt.Errorf("cache: scan selector stat: %w", err)
		}
		st.LastUsedAt = time.UnixMilli(used)
		if succAt.Valid {
			st.LastSuccessAt = time.UnixMilli(succAt.Int64)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// ResetSelectorStats wipes all learning state. Explicit analytics reset
// only; nothing else deletes these rows.
func (s *Store) ResetSelectorStats(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM selector_performance`); err != nil {
		return fmt.Errorf("%w: reset selector stats: %v", ErrWrite, err)
	}
	return nil
}
