// Package storetest is the contract suite every store.Store backend must pass.
package storetest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"lifereg/internal/address"
	"lifereg/internal/store"
)

// Factory opens a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises the store contract against stores built by open.
func Run(t *testing.T, open Factory) {
	t.Run("create then get", func(t *testing.T) { testCreateGet(t, open) })
	t.Run("create occupied", func(t *testing.T) { testCreateOccupied(t, open) })
	t.Run("put and delete", func(t *testing.T) { testPutDelete(t, open) })
	t.Run("rollback on error", func(t *testing.T) { testRollback(t, open) })
	t.Run("view is read only", func(t *testing.T) { testViewReadOnly(t, open) })
	t.Run("scan by kind", func(t *testing.T) { testScan(t, open) })
	t.Run("concurrent create", func(t *testing.T) { testConcurrentCreate(t, open) })
	t.Run("closed", func(t *testing.T) { testClosed(t, open) })
}

func addr(seed string) address.Address {
	return address.Derive(address.KindPattern, []byte(seed))
}

func rec(data string) store.Record {
	return store.Record{Kind: address.KindPattern, Data: []byte(data)}
}

func openClean(t *testing.T, open Factory) store.Store {
	t.Helper()
	s := open(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCreateGet(t *testing.T, open Factory) {
	s := openClean(t, open)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.Create(addr("a"), rec("alpha"))
	}))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.Get(addr("a"))
		require.NoError(t, err)
		assert.Equal(t, address.KindPattern, got.Kind)
		assert.Equal(t, []byte("alpha"), got.Data)

		_, err = tx.Get(addr("missing"))
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func testCreateOccupied(t *testing.T, open Factory) {
	s := openClean(t, open)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.Create(addr("a"), rec("first"))
	}))
	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.Create(addr("a"), rec("second"))
	})
	require.ErrorIs(t, err, store.ErrOccupied)

	// Occupied inside the same transaction too.
	err = s.Update(ctx, func(tx store.Tx) error {
		if err := tx.Create(addr("b"), rec("x")); err != nil {
			return err
		}
		return tx.Create(addr("b"), rec("y"))
	})
	require.ErrorIs(t, err, store.ErrOccupied)

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.Get(addr("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got.Data, "create must never overwrite")
		_, err = tx.Get(addr("b"))
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func testPutDelete(t *testing.T, open Factory) {
	s := openClean(t, open)
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error { return tx.Put(addr("a"), rec("x")) })
	require.ErrorIs(t, err, store.ErrNotFound)
	err = s.Update(ctx, func(tx store.Tx) error { return tx.Delete(addr("a")) })
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.Create(addr("a"), rec("one")); err != nil {
			return err
		}
		return tx.Put(addr("a"), rec("two"))
	}))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.Get(addr("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got.Data)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.Delete(addr("a")); err != nil {
			return err
		}
		_, err := tx.Get(addr("a"))
		assert.ErrorIs(t, err, store.ErrNotFound)
		// The address is free again once deleted.
		return tx.Create(addr("a"), rec("three"))
	}))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.Get(addr("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("three"), got.Data)
		return nil
	}))
}

func testRollback(t *testing.T, open Factory) {
	s := openClean(t, open)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.Create(addr("keep"), rec("v1"))
	}))
	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.Create(addr("new"), rec("n")); err != nil {
			return err
		}
		if err := tx.Put(addr("keep"), rec("v2")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		_, err := tx.Get(addr("new"))
		assert.ErrorIs(t, err, store.ErrNotFound)
		got, err := tx.Get(addr("keep"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got.Data)
		return nil
	}))
}

func testViewReadOnly(t *testing.T, open Factory) {
	s := openClean(t, open)
	err := s.View(context.Background(), func(tx store.Tx) error {
		return tx.Create(addr("a"), rec("x"))
	})
	require.ErrorIs(t, err, store.ErrReadOnly)
}

func testScan(t *testing.T, open Factory) {
	s := openClean(t, open)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, seed := range []string{"c", "a", "b"} {
			if err := tx.Create(addr(seed), rec(seed)); err != nil {
				return err
			}
		}
		return tx.Create(address.Derive(address.KindFavorite, []byte("f")),
			store.Record{Kind: address.KindFavorite, Data: []byte("fav")})
	}))

	var seen []address.Address
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		return tx.Scan(address.KindPattern, func(a address.Address, r store.Record) error {
			assert.Equal(t, address.KindPattern, r.Kind)
			seen = append(seen, a)
			return nil
		})
	}))
	require.Len(t, seen, 3)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1].String(), seen[i].String(), "scan must be address ordered")
	}

	stop := errors.New("stop")
	err := s.View(ctx, func(tx store.Tx) error {
		return tx.Scan(address.KindPattern, func(address.Address, store.Record) error { return stop })
	})
	assert.ErrorIs(t, err, stop)
}

func testConcurrentCreate(t *testing.T, open Factory) {
	s := openClean(t, open)
	ctx := context.Background()

	const callers = 16
	var wins, occupied atomic.Int32
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			err := s.Update(ctx, func(tx store.Tx) error {
				return tx.Create(addr("contended"), rec("x"))
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, store.ErrOccupied):
				occupied.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(callers-1), occupied.Load())
}

func testClosed(t *testing.T, open Factory) {
	s := open(t)
	require.NoError(t, s.Close())
	err := s.View(context.Background(), func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, store.ErrClosed)
}
