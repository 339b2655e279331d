// Package store defines the transactional record store the registry runs on.
// Records live at derived addresses; Create is an atomic create-if-absent and
// is the only uniqueness mechanism the registry relies on.
package store

import (
	"context"
	"errors"

	"lifereg/internal/address"
)

var (
	// ErrOccupied is returned by Create when the address already holds a record.
	ErrOccupied = errors.New("store: address already in use")
	// ErrNotFound is returned when no record exists at the address.
	ErrNotFound = errors.New("store: record not found")
	// ErrReadOnly is returned by writes inside a View transaction.
	ErrReadOnly = errors.New("store: read-only transaction")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Record is one stored entity: its kind and encoded layout.
type Record struct {
	Kind address.Kind
	Data []byte
}

// Tx is the view of the store inside one transaction. Writes made through a
// Tx become visible to other callers only when the transaction commits.
type Tx interface {
	// Get returns the record at a or ErrNotFound.
	Get(a address.Address) (Record, error)
	// Create stores r at a, failing with ErrOccupied if a is in use.
	Create(a address.Address, r Record) error
	// Put overwrites the existing record at a, failing with ErrNotFound.
	Put(a address.Address, r Record) error
	// Delete removes the record at a, failing with ErrNotFound.
	Delete(a address.Address) error
	// Scan visits every record of kind in address order.
	Scan(kind address.Kind, fn func(address.Address, Record) error) error
}

// Store runs transactions. Update commits when fn returns nil and discards
// every write otherwise; View never writes.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}
