// Package entity defines the records kept in the registry store and their
// fixed-width binary layouts.
package entity

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"lifereg/internal/address"
	"lifereg/pkg/bitmap"
)

// MaxIDLen is the longest pattern id in bytes.
const MaxIDLen = 32

var (
	// ErrIDTooLong reports an id over MaxIDLen bytes.
	ErrIDTooLong = errors.New("entity: id too long")
	// ErrInvalidID reports an id that is not valid UTF-8.
	ErrInvalidID = errors.New("entity: id is not valid utf-8")
	// ErrCorrupt reports a stored record that cannot be decoded.
	ErrCorrupt = errors.New("entity: corrupt record")
)

// PatternID is a pattern name padded to MaxIDLen bytes with an explicit length.
type PatternID struct {
	buf [MaxIDLen]byte
	n   uint8
}

// NewPatternID validates and packs s.
func NewPatternID(s string) (PatternID, error) {
	var id PatternID
	if len(s) > MaxIDLen {
		return id, fmt.Errorf("%w: %d bytes, max %d", ErrIDTooLong, len(s), MaxIDLen)
	}
	if !utf8.ValidString(s) {
		return id, ErrInvalidID
	}
	copy(id.buf[:], s)
	id.n = uint8(len(s))
	return id, nil
}

// String trims the padding using the stored length.
func (id PatternID) String() string { return string(id.buf[:id.n]) }

// Bytes returns the significant bytes, used as the address seed.
func (id PatternID) Bytes() []byte { return append([]byte(nil), id.buf[:id.n]...) }

// Pattern is a published Game of Life configuration.
type Pattern struct {
	Owner         address.Identity
	ID            PatternID
	Cells         bitmap.Bitmap
	Generation    uint64
	FavoriteCount uint64
}

// Favorite marks that User starred Pattern.
type Favorite struct {
	User    address.Identity
	Pattern address.Address
}

// Registry is the bounded, append-only list of published pattern addresses.
type Registry struct {
	Authority address.Address
	Capacity  uint32
	Entries   []address.Address
}

// Full reports whether no more entries fit.
func (r *Registry) Full() bool { return uint32(len(r.Entries)) >= r.Capacity }

// Append adds a pattern address, reporting false when the registry is full.
func (r *Registry) Append(a address.Address) bool {
	if r.Full() {
		return false
	}
	r.Entries = append(r.Entries, a)
	return true
}
