// Package user reads and writes registered account records.
package user

import (
	"path"

	"github.com/matheus3301/relay/internal/phone"
	"github.com/matheus3301/relay/internal/store"
)

// User is a registered account. An empty Photo means the user has none.
type User struct {
	ID     string       `json:"id"`
	Phone  phone.Number `json:"phone"`
	Photo  string       `json:"photo,omitempty"`
	Tokens []string     `json:"tokens"`
}

// FromRecord decodes a users/{id} document. The id falls back to the last
// path segment when the record does not carry one.
func FromRecord(docPath string, rec store.Record) User {
	u := User{
		ID:    str(rec["id"]),
		Phone: phone.FromRecord(rec["phone"]),
		Photo: str(rec["photo"]),
	}
	if u.ID == "" && docPath != "" {
		u.ID = path.Base(docPath)
	}
	if u.Photo == "" {
		u.Photo = str(rec["photoUrl"])
	}
	switch tokens := rec["tokens"].(type) {
	case []string:
		u.Tokens = append([]string(nil), tokens...)
	case []any:
		for _, t := range tokens {
			if s, ok := t.(string); ok && s != "" {
				u.Tokens = append(u.Tokens, s)
			}
		}
	}
	return u
}

// Record returns the document form of u.
func (u User) Record() store.Record {
	tokens := make([]any, len(u.Tokens))
	for i, t := range u.Tokens {
		tokens[i] = t
	}
	rec := store.Record{
		"id":     u.ID,
		"phone":  u.Phone.Record(),
		"tokens": tokens,
	}
	if u.Photo != "" {
		rec["photo"] = u.Photo
	}
	return rec
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
