package snapshot

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph/observability"
)

// Archive saves and loads graph snapshots through a Store, wrapping each in
// a Record.
type Archive struct {
	store  Store
	logger *slog.Logger
	format Format
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the archive logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithFormat sets the encoding of saved records. Default: FormatJSON
func WithFormat(f Format) Option {
	return func(a *Archive) {
		a.format = f
	}
}

// NewArchive creates an archive over store. The archive does not own the
// store; closing it is the caller's job.
func NewArchive(store Store, opts ...Option) *Archive {
	a := &Archive{store: store, logger: slog.Default(), format: FormatJSON}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the underlying store.
func (a *Archive) Store() Store {
	return a.store
}

// Save appends snap as the next revision of document.
//
// Example:
//
//	rev, err := archive.Save("scene", session.Snapshot())
func (a *Archive) Save(document string, snap *nodegraph.Snapshot) (int64, error) {
	data, err := NewRecord(document, snap).Marshal(a.format)
	if err != nil {
		observability.LogSnapshotError(a.logger, "save", document, err)
		return 0, fmt.Errorf("encode %s: %w", document, err)
	}
	rev, err := a.store.Save(document, data)
	if err != nil {
		observability.LogSnapshotError(a.logger, "save", document, err)
		return 0, fmt.Errorf("save %s: %w", document, err)
	}
	observability.LogSnapshot(a.logger, "saved", document, rev, len(data))
	return rev, nil
}

// Load returns the newest revision of document.
//
// Example:
//
//	snap, _, err := archive.Load("scene")
//	if err != nil {
//	    return err
//	}
//	err = session.Load(snap)
func (a *Archive) Load(document string) (*nodegraph.Snapshot, int64, error) {
	data, rev, err := a.store.Latest(document)
	if err != nil {
		observability.LogSnapshotError(a.logger, "load", document, err)
		return nil, 0, fmt.Errorf("load %s: %w", document, err)
	}
	snap, err := a.decode(document, data)
	if err != nil {
		return nil, 0, err
	}
	observability.LogSnapshot(a.logger, "loaded", document, rev, len(data))
	return snap, rev, nil
}

// LoadRevision returns one revision of document.
func (a *Archive) LoadRevision(document string, revision int64) (*nodegraph.Snapshot, error) {
	data, err := a.store.Load(document, revision)
	if err != nil {
		observability.LogSnapshotError(a.logger, "load", document, err)
		return nil, fmt.Errorf("load %s@%d: %w", document, revision, err)
	}
	snap, err := a.decode(document, data)
	if err != nil {
		return nil, err
	}
	observability.LogSnapshot(a.logger, "loaded", document, revision, len(data))
	return snap, nil
}

// Revisions lists the stored revisions of document, oldest first.
func (a *Archive) Revisions(document string) ([]Info, error) {
	return a.store.List(document)
}

func (a *Archive) decode(document string, data []byte) (*nodegraph.Snapshot, error) {
	rec, err := Unmarshal(data)
	if err != nil {
		observability.LogSnapshotError(a.logger, "decode", document, err)
		return nil, fmt.Errorf("decode %s: %w", document, err)
	}
	if rec.Graph == nil {
		err := fmt.Errorf("decode %s: record has no graph", document)
		observability.LogSnapshotError(a.logger, "decode", document, err)
		return nil, err
	}
	return rec.Graph, nil
}
