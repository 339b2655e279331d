package registry

import (
	"encoding"
	"errors"
	"fmt"

	"lifereg/internal/address"
	"lifereg/internal/entity"
	"lifereg/internal/store"
)

type record interface {
	encoding.BinaryMarshaler
}

func encode(kind address.Kind, r record) (store.Record, error) {
	data, err := r.MarshalBinary()
	if err != nil {
		return store.Record{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return store.Record{Kind: kind, Data: data}, nil
}

// putNew creates the record, passing store.ErrOccupied through untouched.
func putNew(tx store.Tx, a address.Address, kind address.Kind, r record) error {
	rec, err := encode(kind, r)
	if err != nil {
		return err
	}
	if err := tx.Create(a, rec); err != nil {
		if errors.Is(err, store.ErrOccupied) {
			return err
		}
		return fmt.Errorf("create %s: %w", kind, err)
	}
	return nil
}

func putExisting(tx store.Tx, a address.Address, kind address.Kind, r record) error {
	rec, err := encode(kind, r)
	if err != nil {
		return err
	}
	if err := tx.Put(a, rec); err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	return nil
}

func loadPattern(tx store.Tx, a address.Address) (entity.Pattern, error) {
	var p entity.Pattern
	r, err := tx.Get(a)
	if errors.Is(err, store.ErrNotFound) {
		return p, ErrPatternNotFound
	}
	if err != nil {
		return p, fmt.Errorf("get pattern: %w", err)
	}
	if r.Kind != address.KindPattern {
		return p, ErrPatternNotFound
	}
	if err := p.UnmarshalBinary(r.Data); err != nil {
		return p, wrapError(CodeCorruptRecord, "decode pattern "+a.Short(), err)
	}
	return p, nil
}

func loadRegistry(tx store.Tx, a address.Address) (entity.Registry, error) {
	var reg entity.Registry
	r, err := tx.Get(a)
	if errors.Is(err, store.ErrNotFound) {
		return reg, ErrRegistryNotInitialized
	}
	if err != nil {
		return reg, fmt.Errorf("get feed: %w", err)
	}
	if err := reg.UnmarshalBinary(r.Data); err != nil {
		return reg, wrapError(CodeCorruptRecord, "decode feed", err)
	}
	return reg, nil
}

func decodeFavorite(a address.Address, r store.Record) (entity.Favorite, error) {
	var f entity.Favorite
	if err := f.UnmarshalBinary(r.Data); err != nil {
		return f, wrapError(CodeCorruptRecord, "decode favorite "+a.Short(), err)
	}
	return f, nil
}
