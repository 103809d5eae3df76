// Package contact reconciles address-book contacts with registered users.
package contact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/relay/internal/phone"
)

// ErrMalformedInput is returned when a submitted contact cannot be decoded.
var ErrMalformedInput = errors.New("malformed contact")

// Contact is an address-book entry submitted by a client. ID is nil until
// the contact is matched to a registered user.
type Contact struct {
	Name         string         `json:"name"`
	PhoneNumbers []phone.Number `json:"phoneNumbers"`
	ID           *string        `json:"id"`
	Photo        *string        `json:"photo"`
}

// Decode parses one submitted contact. The payload may be a JSON object or
// a JSON string holding the encoded object.
func Decode(raw json.RawMessage) (Contact, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Contact{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return Contact{}, fmt.Errorf("%w: expected an object", ErrMalformedInput)
	}

	var c Contact
	if err := json.Unmarshal(raw, &c); err != nil {
		return Contact{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if c.PhoneNumbers == nil {
		c.PhoneNumbers = []phone.Number{}
	}
	return c, nil
}

// DecodeAll decodes a batch. The first malformed entry fails the whole batch.
func DecodeAll(raws []json.RawMessage) ([]Contact, error) {
	contacts := make([]Contact, 0, len(raws))
	for i, raw := range raws {
		c, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("contact %d: %w", i, err)
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
