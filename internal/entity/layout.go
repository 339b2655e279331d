package entity

import (
	"encoding/binary"
	"fmt"

	"lifereg/internal/address"
	"lifereg/pkg/bitmap"
)

// Tag is the leading byte of every encoded record.
type Tag byte

const (
	TagPattern  Tag = 'G'
	TagFavorite Tag = 'S'
	TagRegistry Tag = 'F'
)

const (
	// PatternSize is tag, owner, id buffer, id length, cells, generation, favorites.
	PatternSize = 1 + address.Size + MaxIDLen + 1 + bitmap.Bytes + 8 + 8
	// FavoriteSize is tag, user, pattern.
	FavoriteSize = 1 + address.Size + address.Size
	// RegistryHeaderSize is tag, authority, capacity, count.
	RegistryHeaderSize = 1 + address.Size + 4 + 4
)

// RegistrySize is the encoded length of a registry holding n entries.
func RegistrySize(n int) int { return RegistryHeaderSize + n*address.Size }

// MarshalBinary encodes the pattern layout.
func (p *Pattern) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PatternSize)
	off := 0
	buf[off] = byte(TagPattern)
	off++
	off += copy(buf[off:], p.Owner[:])
	off += copy(buf[off:], p.ID.buf[:])
	buf[off] = p.ID.n
	off++
	off += copy(buf[off:], p.Cells[:])
	binary.LittleEndian.PutUint64(buf[off:], p.Generation)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], p.FavoriteCount)
	return buf, nil
}

// UnmarshalBinary decodes the pattern layout.
func (p *Pattern) UnmarshalBinary(data []byte) error {
	if err := checkHeader(data, TagPattern, PatternSize); err != nil {
		return err
	}
	off := 1
	off += copy(p.Owner[:], data[off:])
	off += copy(p.ID.buf[:], data[off:off+MaxIDLen])
	n := data[off]
	off++
	if n > MaxIDLen {
		return fmt.Errorf("%w: id length %d", ErrCorrupt, n)
	}
	p.ID.n = n
	off += copy(p.Cells[:], data[off:off+bitmap.Bytes])
	p.Generation = binary.LittleEndian.Uint64(data[off:])
	off += 8
	p.FavoriteCount = binary.LittleEndian.Uint64(data[off:])
	return nil
}

// MarshalBinary encodes the favorite layout.
func (f *Favorite) MarshalBinary() ([]byte, error) {
	buf := make([]byte, FavoriteSize)
	buf[0] = byte(TagFavorite)
	copy(buf[1:], f.User[:])
	copy(buf[1+address.Size:], f.Pattern[:])
	return buf, nil
}

// UnmarshalBinary decodes the favorite layout.
func (f *Favorite) UnmarshalBinary(data []byte) error {
	if err := checkHeader(data, TagFavorite, FavoriteSize); err != nil {
		return err
	}
	copy(f.User[:], data[1:])
	copy(f.Pattern[:], data[1+address.Size:])
	return nil
}

// MarshalBinary encodes the registry layout.
func (r *Registry) MarshalBinary() ([]byte, error) {
	if uint32(len(r.Entries)) > r.Capacity {
		return nil, fmt.Errorf("entity: registry holds %d entries, capacity %d", len(r.Entries), r.Capacity)
	}
	buf := make([]byte, RegistrySize(len(r.Entries)))
	off := 0
	buf[off] = byte(TagRegistry)
	off++
	off += copy(buf[off:], r.Authority[:])
	binary.LittleEndian.PutUint32(buf[off:], r.Capacity)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(r.Entries)))
	off += 4
	for _, e := range r.Entries {
		off += copy(buf[off:], e[:])
	}
	return buf, nil
}

// UnmarshalBinary decodes the registry layout.
func (r *Registry) UnmarshalBinary(data []byte) error {
	if len(data) < RegistryHeaderSize || Tag(data[0]) != TagRegistry {
		return fmt.Errorf("%w: registry header", ErrCorrupt)
	}
	off := 1
	off += copy(r.Authority[:], data[off:])
	r.Capacity = binary.LittleEndian.Uint32(data[off:])
	off += 4
	count := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if count > r.Capacity {
		return fmt.Errorf("%w: %d entries exceed capacity %d", ErrCorrupt, count, r.Capacity)
	}
	if len(data) != RegistrySize(int(count)) {
		return fmt.Errorf("%w: registry is %d bytes, want %d", ErrCorrupt, len(data), RegistrySize(int(count)))
	}
	r.Entries = make([]address.Address, count)
	for i := range r.Entries {
		off += copy(r.Entries[i][:], data[off:])
	}
	return nil
}

func checkHeader(data []byte, tag Tag, size int) error {
	if len(data) != size {
		return fmt.Errorf("%w: %c record is %d bytes, want %d", ErrCorrupt, tag, len(data), size)
	}
	if Tag(data[0]) != tag {
		return fmt.Errorf("%w: tag %q, want %q", ErrCorrupt, data[0], byte(tag))
	}
	return nil
}
