// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. Transactions run against a
// snapshot that replaces the live state only when the callback succeeds.
// Writers are serialized on txMu; reads outside a transaction see the last
// committed state.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memRecord struct {
	seq int64
	doc Document
}

type memState struct {
	seq  int64
	docs map[Kind]map[string]*memRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{docs: make(map[Kind]map[string]*memRecord)},
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.get(kind, filter)
}

// GetForUpdate needs no row lock; transactions are already serialized on txMu.
func (s *MemoryStore) GetForUpdate(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	return s.Get(ctx, kind, filter)
}

func (s *MemoryStore) List(ctx context.Context, kind Kind, filter Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.list(kind, filter)
}

func (s *MemoryStore) Create(ctx context.Context, kind Kind, doc Document) (Document, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.create(kind, doc, s.now())
}

func (s *MemoryStore) Update(ctx context.Context, kind Kind, filter Filter, patch Document) (Document, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.update(kind, filter, patch, s.now())
}

func (s *MemoryStore) Delete(ctx context.Context, kind Kind, filter Filter) (int, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.delete(kind, filter)
}

// RunInTx serializes transactions with every other write and commits the
// working copy only when fn returns nil. fn must write through tx only.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	tx := &memTx{state: working, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// Count returns how many documents of kind are stored.
func (s *MemoryStore) Count(kind Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.docs[kind])
}

// memTx is the view handed to a transaction callback. The owning store
// already holds txMu.
type memTx struct {
	state *memState
	now   func() time.Time
}

func (t *memTx) Get(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	return t.state.get(kind, filter)
}

func (t *memTx) GetForUpdate(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	return t.state.get(kind, filter)
}

func (t *memTx) List(ctx context.Context, kind Kind, filter Filter) ([]Document, error) {
	return t.state.list(kind, filter)
}

func (t *memTx) Create(ctx context.Context, kind Kind, doc Document) (Document, error) {
	return t.state.create(kind, doc, t.now())
}

func (t *memTx) Update(ctx context.Context, kind Kind, filter Filter, patch Document) (Document, error) {
	return t.state.update(kind, filter, patch, t.now())
}

func (t *memTx) Delete(ctx context.Context, kind Kind, filter Filter) (int, error) {
	return t.state.delete(kind, filter)
}

func (t *memTx) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (m *memState) clone() *memState {
	out := &memState{seq: m.seq, docs: make(map[Kind]map[string]*memRecord, len(m.docs))}
	for kind, records := range m.docs {
		copied := make(map[string]*memRecord, len(records))
		for id, rec := range records {
			copied[id] = &memRecord{seq: rec.seq, doc: copyDocument(rec.doc)}
		}
		out.docs[kind] = copied
	}
	return out
}

// matching returns the records of kind that satisfy filter, newest first.
func (m *memState) matching(kind Kind, filter Filter) ([]*memRecord, error) {
	want, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	var out []*memRecord
	for _, rec := range m.docs[kind] {
		if matches(rec.doc, want) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq > out[j].seq })
	return out, nil
}

func (m *memState) get(kind Kind, filter Filter) (Document, error) {
	recs, err := m.matching(kind, filter)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return copyDocument(recs[0].doc), nil
}

func (m *memState) list(kind Kind, filter Filter) ([]Document, error) {
	recs, err := m.matching(kind, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(recs))
	for _, rec := range recs {
		out = append(out, copyDocument(rec.doc))
	}
	return out, nil
}

func (m *memState) create(kind Kind, doc Document, now time.Time) (Document, error) {
	if doc == nil {
		doc = Document{}
	}
	n, err := normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	stored := Document(n.(map[string]interface{}))

	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored[FieldID] = id
	}
	if _, exists := m.docs[kind][id]; exists {
		return nil, fmt.Errorf("create %s: duplicate id %s", kind, id)
	}
	ts := now.UTC().Format(time.RFC3339Nano)
	stored[FieldCreatedAt] = ts
	stored[FieldUpdatedAt] = ts

	if m.docs[kind] == nil {
		m.docs[kind] = make(map[string]*memRecord)
	}
	m.seq++
	m.docs[kind][id] = &memRecord{seq: m.seq, doc: stored}
	return copyDocument(stored), nil
}

func (m *memState) update(kind Kind, filter Filter, patch Document, now time.Time) (Document, error) {
	recs, err := m.matching(kind, filter)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	if patch == nil {
		patch = Document{}
	}
	n, err := normalize(patch)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}

	rec := recs[0]
	for k, v := range n.(map[string]interface{}) {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		rec.doc[k] = v
	}
	rec.doc[FieldUpdatedAt] = now.UTC().Format(time.RFC3339Nano)
	return copyDocument(rec.doc), nil
}

func (m *memState) delete(kind Kind, filter Filter) (int, error) {
	recs, err := m.matching(kind, filter)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		delete(m.docs[kind], rec.doc.ID())
	}
	return len(recs), nil
}
