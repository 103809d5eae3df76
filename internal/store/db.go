package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/matheus3301/relay/internal/bus"
)

// DB wraps the SQLite connection backing the relay record store.
type DB struct {
	*sql.DB
	feed *bus.Bus
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db}, nil
}

// WithFeed makes committed writes publish change events on b.
func (db *DB) WithFeed(b *bus.Bus) *DB {
	db.feed = b
	return db
}

func (db *DB) publish(kind string, change Change) {
	if db.feed == nil {
		return
	}
	db.feed.Publish(bus.NewEvent(kind, change))
}
