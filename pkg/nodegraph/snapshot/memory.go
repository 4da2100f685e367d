package snapshot

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps revisions in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*memoryDocument
	closed bool
}

type memoryDocument struct {
	next      int64
	revisions map[int64]storedRevision
}

type storedRevision struct {
	data      []byte
	timestamp time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*memoryDocument)}
}

// Save implements Store.
func (m *MemoryStore) Save(document string, data []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	doc := m.docs[document]
	if doc == nil {
		doc = &memoryDocument{revisions: make(map[int64]storedRevision)}
		m.docs[document] = doc
	}
	doc.next++
	doc.revisions[doc.next] = storedRevision{
		data:      slices.Clone(data),
		timestamp: time.Now().UTC(),
	}
	return doc.next, nil
}

// Load implements Store.
func (m *MemoryStore) Load(document string, revision int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	doc := m.docs[document]
	if doc == nil {
		return nil, ErrNotFound
	}
	rev, ok := doc.revisions[revision]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(rev.data), nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(document string) ([]byte, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, 0, ErrStoreClosed
	}
	doc := m.docs[document]
	if doc == nil || len(doc.revisions) == 0 {
		return nil, 0, ErrNotFound
	}
	latest := slices.Max(slices.Collect(maps.Keys(doc.revisions)))
	return slices.Clone(doc.revisions[latest].data), latest, nil
}

// List implements Store.
func (m *MemoryStore) List(document string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	doc := m.docs[document]
	if doc == nil {
		return nil, nil
	}
	infos := make([]Info, 0, len(doc.revisions))
	for _, rev := range slices.Sorted(maps.Keys(doc.revisions)) {
		stored := doc.revisions[rev]
		infos = append(infos, Info{
			Document:  document,
			Revision:  rev,
			Timestamp: stored.timestamp,
			Size:      int64(len(stored.data)),
		})
	}
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(document string, revision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if doc := m.docs[document]; doc != nil {
		delete(doc.revisions, revision)
	}
	return nil
}

// DeleteDocument implements Store. The revision counter is kept, so a
// recreated document does not reuse revision numbers.
func (m *MemoryStore) DeleteDocument(document string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if doc := m.docs[document]; doc != nil {
		clear(doc.revisions)
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.docs = nil
	return nil
}

// Len returns the total number of revisions across all documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, doc := range m.docs {
		count += len(doc.revisions)
	}
	return count
}
