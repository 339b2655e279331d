// Package memory provides an in-memory Store for tests and ephemeral runs.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"lifereg/internal/address"
	"lifereg/internal/store"
)

// Compile-time contract assertion.
var _ store.Store = (*Store)(nil)

// Store keeps records in a map. Update transactions run one at a time and
// stage their writes until commit; View transactions may run concurrently.
type Store struct {
	mu      sync.RWMutex
	records map[address.Address]store.Record
	closed  bool
}

// New returns an empty store.
func New() *Store {
	return &Store{records: map[address.Address]store.Record{}}
}

// Update runs fn with exclusive access and applies its writes if it succeeds.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	tx := &txn{base: s.records, writes: map[address.Address]*store.Record{}}
	if err := fn(tx); err != nil {
		return err
	}
	for a, r := range tx.writes {
		if r == nil {
			delete(s.records, a)
			continue
		}
		s.records[a] = *r
	}
	return nil
}

// View runs fn against a consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return fn(&txn{base: s.records, readOnly: true})
}

// Close releases the records.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	return nil
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type txn struct {
	base     map[address.Address]store.Record
	writes   map[address.Address]*store.Record // nil value marks a delete
	readOnly bool
}

func (t *txn) lookup(a address.Address) (store.Record, bool) {
	if w, ok := t.writes[a]; ok {
		if w == nil {
			return store.Record{}, false
		}
		return *w, true
	}
	r, ok := t.base[a]
	return r, ok
}

func (t *txn) Get(a address.Address) (store.Record, error) {
	r, ok := t.lookup(a)
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return clone(r), nil
}

func (t *txn) Create(a address.Address, r store.Record) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	if _, ok := t.lookup(a); ok {
		return store.ErrOccupied
	}
	c := clone(r)
	t.writes[a] = &c
	return nil
}

func (t *txn) Put(a address.Address, r store.Record) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	if _, ok := t.lookup(a); !ok {
		return store.ErrNotFound
	}
	c := clone(r)
	t.writes[a] = &c
	return nil
}

func (t *txn) Delete(a address.Address) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	if _, ok := t.lookup(a); !ok {
		return store.ErrNotFound
	}
	t.writes[a] = nil
	return nil
}

func (t *txn) Scan(kind address.Kind, fn func(address.Address, store.Record) error) error {
	seen := map[address.Address]bool{}
	var addrs []address.Address
	for a := range t.base {
		seen[a] = true
		addrs = append(addrs, a)
	}
	for a := range t.writes {
		if !seen[a] {
			addrs = append(addrs, a)
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, a := range addrs {
		r, ok := t.lookup(a)
		if !ok || r.Kind != kind {
			continue
		}
		if err := fn(a, clone(r)); err != nil {
			return err
		}
	}
	return nil
}

func clone(r store.Record) store.Record {
	return store.Record{Kind: r.Kind, Data: append([]byte(nil), r.Data...)}
}
