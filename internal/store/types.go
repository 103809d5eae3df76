package store

import "errors"

// Change feed event kinds published by the store.
const (
	KindDocCreated = "doc.created"
	KindDocUpdated = "doc.updated"
)

// ErrNotFound is returned by Update when the target document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrExists is returned by Create when the path is already taken.
var ErrExists = errors.New("document already exists")

// ErrInvalidPath is returned for paths that do not address a document.
var ErrInvalidPath = errors.New("invalid document path")

// Record is a schemaless document body. Values follow encoding/json decoding
// rules (numbers are float64, lists are []any, objects are map[string]any).
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Document is a record together with the path it is stored under.
type Document struct {
	Path   string
	Record Record
}

// Change is the payload of doc.created and doc.updated events. Before is nil
// for created documents.
type Change struct {
	Path   string
	Before Record
	After  Record
}

// Delivery is a row of the notification delivery ledger.
type Delivery struct {
	Key          string
	Receiver     string
	Status       string // claimed, sent
	SuccessCount int
	FailureCount int
	CreatedAt    int64
	UpdatedAt    int64
}
