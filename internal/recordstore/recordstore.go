// Package recordstore persists collections of typed records as JSON arrays.
//
// Each collection is one document on a Backend: a file in a data directory
// (FileBackend) or a row in Postgres (PostgresBackend). Reads decode the whole
// document, writes encode and replace it. A collection serializes its own
// read-modify-write cycles, so concurrent requests never lose each other's
// updates.
package recordstore

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateID  = errors.New("record id already exists in collection")
	ErrNoDocument   = errors.New("collection document does not exist")
	ErrUnreadable   = errors.New("collection document is unreadable")
	ErrInvalidName  = errors.New("invalid collection name")
	ErrInvalidPatch = errors.New("patch does not fit the record")
)

// protected fields are owned by the store and ignored in patches.
var protectedFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

var validName = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Meta is embedded in every stored record.
type Meta struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (m *Meta) RecordMeta() *Meta { return m }

// Entity is satisfied by any pointer to a struct embedding Meta.
type Entity interface {
	RecordMeta() *Meta
}

func checkName(name string) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}
