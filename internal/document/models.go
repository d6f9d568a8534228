package document

import (
	"errors"
	"time"
)

// MaxLastEditors bounds the lastEditors list stored on every document.
const MaxLastEditors = 10

var (
	// ErrNotFound is returned by read operations when no record exists for the id.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by ConditionalUpdate when the expected version
	// no longer matches the stored version. The stored record is untouched.
	ErrConflict = errors.New("document version conflict")
	// ErrInvalidID is returned when an operation is called with an empty id.
	ErrInvalidID = errors.New("document id required")
)

// Document is the durable record for one collaborative document. Content is
// an opaque payload produced by the editor; the server never interprets it.
// Version is the optimistic-concurrency token: it starts at 0 and is bumped
// by exactly 1 on every successful conditional write.
type Document struct {
	ID          string      `json:"id" bson:"_id"`
	Content     interface{} `json:"content" bson:"content"`
	Version     int64       `json:"version" bson:"version"`
	LastEditors []string    `json:"lastEditors" bson:"lastEditors"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// TouchEditor appends id to the editor list if absent and evicts the oldest
// entries beyond MaxLastEditors. Re-adding a present id keeps its position.
func TouchEditor(editors []string, id string) []string {
	if id == "" {
		return editors
	}
	for _, e := range editors {
		if e == id {
			return editors
		}
	}
	editors = append(editors, id)
	if n := len(editors); n > MaxLastEditors {
		editors = editors[n-MaxLastEditors:]
	}
	return editors
}
