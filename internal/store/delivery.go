package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ClaimDelivery records key in the delivery ledger. It reports true when this
// caller inserted the key and false when it was already claimed.
func (db *DB) ClaimDelivery(ctx context.Context, key, receiver string) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		INSERT INTO deliveries (dedupe_key, receiver, status, created_at, updated_at)
		VALUES (?, ?, 'claimed', ?, ?)
		ON CONFLICT(dedupe_key) DO NOTHING`,
		key, receiver, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordDelivery stores the dispatch result for a claimed key.
func (db *DB) RecordDelivery(ctx context.Context, key string, success, failure int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = 'sent', success_count = ?, failure_count = ?, updated_at = ?
		WHERE dedupe_key = ?`,
		success, failure, time.Now().UnixMilli(), key)
	return err
}

// GetDelivery returns the ledger row for key, or nil when it has not been claimed.
func (db *DB) GetDelivery(ctx context.Context, key string) (*Delivery, error) {
	var d Delivery
	err := db.QueryRowContext(ctx, `
		SELECT dedupe_key, receiver, status, success_count, failure_count, created_at, updated_at
		FROM deliveries WHERE dedupe_key = ?`, key).
		Scan(&d.Key, &d.Receiver, &d.Status, &d.SuccessCount, &d.FailureCount, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDeliveries returns the number of ledger rows.
func (db *DB) CountDeliveries(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliveries`).Scan(&n)
	return n, err
}
