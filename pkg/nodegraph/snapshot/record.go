package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
	"gopkg.in/yaml.v3"
)

// Version is the current record format version.
// Increment when making breaking changes to the record envelope.
const Version = 1

// ErrUnsupportedVersion indicates a record written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported record version")

// Format selects the record encoding.
type Format string

// Record encodings.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Record is the persisted envelope around a graph snapshot.
type Record struct {
	Version  int                 `json:"version" yaml:"version"`
	Document string              `json:"document" yaml:"document"`
	SavedAt  time.Time           `json:"saved_at" yaml:"saved_at"`
	Graph    *nodegraph.Snapshot `json:"graph" yaml:"graph"`
}

// NewRecord wraps snap for document.
func NewRecord(document string, snap *nodegraph.Snapshot) *Record {
	return &Record{
		Version:  Version,
		Document: document,
		SavedAt:  time.Now().UTC(),
		Graph:    snap,
	}
}

// Marshal encodes the record.
func (r *Record) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(r)
	case FormatJSON, "":
		return json.Marshal(r)
	default:
		return nil, fmt.Errorf("unknown record format %q", format)
	}
}

// Unmarshal decodes a record in either encoding. JSON is recognized by its
// leading brace.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	var err error
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(data, &r)
	} else {
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if r.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.Version)
	}
	return &r, nil
}

// EncodeYAML writes a bare snapshot as YAML, the format used for
// hand-edited graph fixtures.
func EncodeYAML(s *nodegraph.Snapshot) ([]byte, error) {
	return yaml.Marshal(s)
}

// DecodeYAML reads a bare snapshot written by EncodeYAML. The result is not
// validated; pass it to nodegraph.NewGraphFromSnapshot or Session.Load.
func DecodeYAML(data []byte) (*nodegraph.Snapshot, error) {
	var s nodegraph.Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// EncodeJSON writes a bare snapshot as indented JSON.
func EncodeJSON(s *nodegraph.Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// DecodeJSON reads a bare snapshot written by EncodeJSON.
func DecodeJSON(data []byte) (*nodegraph.Snapshot, error) {
	var s nodegraph.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
