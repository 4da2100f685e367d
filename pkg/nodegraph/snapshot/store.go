// Package snapshot persists graph snapshots as numbered revisions of named
// documents.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph/config"
)

// Store persists revisions of documents. Each Save appends a revision;
// revisions of a document start at 1 and only grow, even after deletes.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save appends data as the next revision of document.
	Save(document string, data []byte) (revision int64, err error)

	// Load retrieves one revision.
	// Returns ErrNotFound if it doesn't exist.
	Load(document string, revision int64) ([]byte, error)

	// Latest retrieves the newest revision of a document.
	// Returns ErrNotFound if the document has no revisions.
	Latest(document string) ([]byte, int64, error)

	// List returns the revisions of a document, oldest first.
	// Returns an empty slice (not error) for an unknown document.
	List(document string) ([]Info, error)

	// Delete removes one revision. Returns nil if it doesn't exist.
	Delete(document string, revision int64) error

	// DeleteDocument removes every revision of a document.
	DeleteDocument(document string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a stored revision without loading it.
type Info struct {
	Document  string
	Revision  int64
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a revision or document doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)

// Open creates the store selected by settings.
func Open(s config.SnapshotSettings) (Store, error) {
	switch s.Driver {
	case "", config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		return NewSQLiteStore(s.Path)
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", s.Driver)
	}
}
