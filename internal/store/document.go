package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the document at path. A missing document is reported as
// (nil, false, nil).
func (db *DB) Get(ctx context.Context, path string) (Record, bool, error) {
	if _, err := splitPath(path); err != nil {
		return nil, false, err
	}
	return get(ctx, db.DB, path)
}

// Set overwrites the document at path with rec, creating it if needed.
// Publishes doc.created for new documents and doc.updated otherwise.
func (db *DB) Set(ctx context.Context, path string, rec Record) error {
	collection, err := splitPath(path)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = Record{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	before, existed, err := get(ctx, tx, path)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (path, collection, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		path, collection, string(data), now, now); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	after, err := decode(data)
	if err != nil {
		return err
	}
	if existed {
		db.publish(KindDocUpdated, Change{Path: path, Before: before, After: after})
	} else {
		db.publish(KindDocCreated, Change{Path: path, After: after})
	}
	return nil
}

// Create writes rec at path only if no document exists there yet and
// publishes doc.created. Returns ErrExists otherwise.
func (db *DB) Create(ctx context.Context, path string, rec Record) error {
	collection, err := splitPath(path)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = Record{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING`,
		path, collection, string(data), now, now)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("create %s: %w", path, ErrExists)
	}

	after, err := decode(data)
	if err != nil {
		return err
	}
	db.publish(KindDocCreated, Change{Path: path, After: after})
	return nil
}

// Update merges fields into the top level of the document at path.
// Returns ErrNotFound when the document does not exist.
func (db *DB) Update(ctx context.Context, path string, fields Record) error {
	return db.UpdateIf(ctx, path, func(Record) (Record, error) { return fields, nil })
}

// UpdateIf reads the document at path and merges the fields returned by
// apply, all inside one transaction. An error from apply aborts the update
// and is returned unchanged. Returns ErrNotFound when the document does not
// exist.
func (db *DB) UpdateIf(ctx context.Context, path string, apply func(current Record) (Record, error)) error {
	if _, err := splitPath(path); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	before, existed, err := get(ctx, tx, path)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}

	fields, err := apply(before.Clone())
	if err != nil {
		return err
	}
	merged := before.Clone()
	for k, v := range fields {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE path = ?`,
		string(data), time.Now().UnixMilli(), path); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	after, err := decode(data)
	if err != nil {
		return err
	}
	db.publish(KindDocUpdated, Change{Path: path, Before: before, After: after})
	return nil
}

// StreamAll returns every document directly under collection in insertion order.
func (db *DB) StreamAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, data FROM documents
		WHERE collection = ?
		ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// PendingTextMessages returns text message documents still at status none
// that were last written before the cutoff, oldest first.
func (db *DB) PendingTextMessages(ctx context.Context, before time.Time, limit int) ([]Document, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, data FROM documents
		WHERE collection GLOB 'users/*/chats/*/messages'
		  AND json_extract(data, '$.status') = 'none'
		  AND json_extract(data, '$.type') = 'text'
		  AND updated_at < ?
		ORDER BY id
		LIMIT ?`, before.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var path, data string
		if err := rows.Scan(&path, &data); err != nil {
			return nil, err
		}
		rec, err := decode([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		docs = append(docs, Document{Path: path, Record: rec})
	}
	return docs, rows.Err()
}

func get(ctx context.Context, q querier, path string) (Record, bool, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec, err := decode([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, true, nil
}

func decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}
