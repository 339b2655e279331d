// Package address derives the deterministic storage locations of registry
// records from a typed seed tuple. The same kind and seeds always yield the
// same address; the store's create-if-absent primitive on that address is what
// makes every record unique.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the byte length of addresses and identities.
const Size = 32

// Address locates one record in the store.
type Address [Size]byte

// Identity names a caller. It is the same width as an Address so records can
// embed either.
type Identity [Size]byte

// Kind selects the record family an address belongs to.
type Kind uint8

const (
	KindRegistry Kind = iota + 1
	KindRegistryAuthority
	KindPattern
	KindFavorite
)

// Label is the constant seed prefix mixed into every derivation of the kind.
func (k Kind) Label() string {
	switch k {
	case KindRegistry:
		return "FEED_SEED"
	case KindRegistryAuthority:
		return "feed_authority"
	case KindPattern:
		return "GAME_SEED"
	case KindFavorite:
		return "STAR_SEED"
	default:
		return fmt.Sprintf("kind-%d", uint8(k))
	}
}

func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindRegistryAuthority:
		return "registry_authority"
	case KindPattern:
		return "pattern"
	case KindFavorite:
		return "favorite"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Deriver maps a kind and seed tuple to an address.
type Deriver func(kind Kind, seeds ...[]byte) Address

// Derive is the default Deriver: SHA-256 over the kind label followed by each
// seed prefixed with its length, so seed boundaries cannot be shifted.
func Derive(kind Kind, seeds ...[]byte) Address {
	h := sha256.New()
	var n [4]byte
	label := kind.Label()
	binary.BigEndian.PutUint32(n[:], uint32(len(label)))
	h.Write(n[:])
	h.Write([]byte(label))
	for _, s := range seeds {
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write(s)
	}
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// String renders the address as lowercase hex.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// Short is the first eight hex characters, for logs.
func (a Address) Short() string { return a.String()[:8] }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// String renders the identity as lowercase hex.
func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// Short is the first eight hex characters, for logs.
func (id Identity) Short() string { return id.String()[:8] }

// Parse decodes a hex address.
func Parse(s string) (Address, error) {
	var a Address
	err := decodeHex(strings.TrimSpace(s), a[:])
	return a, err
}

// ParseIdentity decodes a hex identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	err := decodeHex(strings.TrimSpace(s), id[:])
	return id, err
}

// IdentityFromName hashes a human-readable name into an identity. It stands in
// for a wallet key when driving the registry from the CLI or tests.
func IdentityFromName(name string) Identity {
	return Identity(sha256.Sum256([]byte(name)))
}

func decodeHex(s string, dst []byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("decode hex: got %d bytes, want %d", len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}
