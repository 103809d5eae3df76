package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/relay/internal/store"
)

// ErrMissingID is returned by Put for a user without an id.
var ErrMissingID = errors.New("user id is required")

// Store is the subset of the record store the directory needs.
type Store interface {
	Get(ctx context.Context, path string) (store.Record, bool, error)
	Set(ctx context.Context, path string, rec store.Record) error
	StreamAll(ctx context.Context, collection string) ([]store.Document, error)
}

// Directory is the set of registered users.
type Directory struct {
	store Store
}

// NewDirectory creates a directory backed by s.
func NewDirectory(s Store) *Directory {
	return &Directory{store: s}
}

// All returns every registered user in store order.
func (d *Directory) All(ctx context.Context) ([]User, error) {
	docs, err := d.store.StreamAll(ctx, store.UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("stream users: %w", err)
	}
	users := make([]User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, FromRecord(doc.Path, doc.Record))
	}
	return users, nil
}

// Lookup returns the user with the given id. A missing user is (User{}, false, nil).
func (d *Directory) Lookup(ctx context.Context, id string) (User, bool, error) {
	if id == "" {
		return User{}, false, nil
	}
	p := store.UserPath(id)
	rec, ok, err := d.store.Get(ctx, p)
	if err != nil || !ok {
		return User{}, false, err
	}
	return FromRecord(p, rec), true, nil
}

// Put creates or replaces the user's record.
func (d *Directory) Put(ctx context.Context, u User) error {
	if u.ID == "" {
		return ErrMissingID
	}
	return d.store.Set(ctx, store.UserPath(u.ID), u.Record())
}
