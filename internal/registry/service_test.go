package registry

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"lifereg/internal/address"
	"lifereg/internal/entity"
	"lifereg/internal/store"
	"lifereg/internal/store/memory"
	"lifereg/internal/store/sqlite"
	"lifereg/pkg/bitmap"
	"lifereg/pkg/core"
	"lifereg/pkg/sims/life"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = address.IdentityFromName("alice")
	bob   = address.IdentityFromName("bob")
	carol = address.IdentityFromName("carol")
)

func newService(t *testing.T, capacity int) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	svc := New(st, Options{Capacity: capacity, Logger: zaptest.NewLogger(t)})
	_, err := svc.InitializeRegistry(context.Background(), alice)
	require.NoError(t, err)
	return svc, st
}

func blinkerCells(t *testing.T) []byte {
	t.Helper()
	buf, err := bitmap.Encode([]core.Cell{{Row: 1, Col: 1}, {Row: 1, Col: 2}, {Row: 1, Col: 3}}, core.GridSize)
	require.NoError(t, err)
	return buf
}

func TestInitializeRegistryTwice(t *testing.T) {
	svc, _ := newService(t, 10)
	_, err := svc.InitializeRegistry(context.Background(), bob)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, CodeAlreadyExists, CodeOf(err))
}

func TestInitializeAuthorityGated(t *testing.T) {
	st := memory.New()
	svc := New(st, Options{})
	ctx := context.Background()

	_, err := svc.InitializeAuthorityGatedRegistry(ctx, alice, address.Derive(address.KindRegistry))
	require.ErrorIs(t, err, ErrInvalidAuthority)
	assert.Equal(t, 0, st.Len(), "rejected authority must not write")

	feed, err := svc.InitializeAuthorityGatedRegistry(ctx, alice, svc.AuthorityAddress())
	require.NoError(t, err)
	assert.Equal(t, svc.RegistryAddress(), feed)

	_, err = svc.InitializeAuthorityGatedRegistry(ctx, bob, svc.AuthorityAddress())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCapacityClampedToMax(t *testing.T) {
	svc := New(memory.New(), Options{Capacity: math.MaxInt})
	assert.Equal(t, MaxCapacity, svc.Capacity())

	ctx := context.Background()
	_, err := svc.InitializeRegistry(ctx, alice)
	require.NoError(t, err)
	_, err = svc.CreatePattern(ctx, alice, "x", blinkerCells(t))
	require.NoError(t, err)
}

func TestOperationsBeforeInitialization(t *testing.T) {
	svc := New(memory.New(), Options{})
	ctx := context.Background()

	_, err := svc.CreatePattern(ctx, alice, "x", blinkerCells(t))
	assert.ErrorIs(t, err, ErrRegistryNotInitialized)
	_, err = svc.ListRegistry(ctx)
	assert.ErrorIs(t, err, ErrRegistryNotInitialized)
}

func TestCreatePatternUniqueness(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()

	first, err := svc.CreatePattern(ctx, alice, "x", blinkerCells(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.Generation)
	assert.Equal(t, uint64(0), first.FavoriteCount)

	_, err = svc.CreatePattern(ctx, alice, "x", make([]byte, bitmap.Bytes))
	require.ErrorIs(t, err, ErrAlreadyExists)

	other, err := svc.CreatePattern(ctx, bob, "x", blinkerCells(t))
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, other.Address)

	got, err := svc.GetPattern(ctx, first.Address)
	require.NoError(t, err)
	assert.Equal(t, first, got, "duplicate create must not overwrite")

	list, err := svc.ListRegistry(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreatePatternBitmapSize(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()

	for _, n := range []int{0, 511, 513} {
		_, err := svc.CreatePattern(ctx, alice, "p", make([]byte, n))
		require.ErrorIs(t, err, ErrInvalidBitmapSize, "len %d", n)
	}
	_, err := svc.CreatePattern(ctx, alice, "p", make([]byte, 512))
	require.NoError(t, err)
}

func TestCreatePatternStoresCellsVerbatim(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()

	cells := make([]byte, bitmap.Bytes)
	for i := range cells {
		cells[i] = byte(i * 7)
	}
	p, err := svc.CreatePattern(ctx, alice, "noise", cells)
	require.NoError(t, err)

	got, err := svc.GetPattern(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, cells, got.Cells[:])
}

func TestCreatePatternIDLength(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()

	_, err := svc.CreatePattern(ctx, alice, strings.Repeat("a", 33), blinkerCells(t))
	require.ErrorIs(t, err, ErrIDTooLong)

	id := strings.Repeat("é", 16) // 32 bytes
	p, err := svc.CreatePattern(ctx, alice, id, blinkerCells(t))
	require.NoError(t, err)

	got, err := svc.GetPattern(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	addr, err := svc.PatternAddress(alice, id)
	require.NoError(t, err)
	assert.Equal(t, p.Address, addr)

	_, err = svc.CreatePattern(ctx, alice, "bad\xff", blinkerCells(t))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRegistryCapacityRollsBack(t *testing.T) {
	svc, st := newService(t, 3)
	ctx := context.Background()

	var created []Summary
	for _, id := range []string{"a", "b", "c"} {
		p, err := svc.CreatePattern(ctx, alice, id, blinkerCells(t))
		require.NoError(t, err)
		created = append(created, p)
	}
	records := st.Len()

	_, err := svc.CreatePattern(ctx, alice, "d", blinkerCells(t))
	require.ErrorIs(t, err, ErrRegistryFull)
	assert.Equal(t, records, st.Len(), "full feed must not leave a pattern behind")

	addr, err := svc.PatternAddress(alice, "d")
	require.NoError(t, err)
	_, err = svc.GetPattern(ctx, addr)
	assert.ErrorIs(t, err, ErrPatternNotFound)

	list, err := svc.ListRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := range created {
		assert.Equal(t, created[i].Address, list[i].Address, "insertion order")
		assert.Equal(t, created[i].ID, list[i].ID)
	}
}

func TestFavoriteToggle(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()
	p, err := svc.CreatePattern(ctx, alice, "x", blinkerCells(t))
	require.NoError(t, err)

	_, err = svc.UnfavoritePattern(ctx, bob, p.Address)
	require.ErrorIs(t, err, ErrNotFavorited)

	n, err := svc.FavoritePattern(ctx, bob, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	_, err = svc.FavoritePattern(ctx, bob, p.Address)
	require.ErrorIs(t, err, ErrAlreadyFavorited)

	n, err = svc.FavoritePattern(ctx, carol, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	starred, err := svc.IsFavorited(ctx, bob, p.Address)
	require.NoError(t, err)
	assert.True(t, starred)

	n, err = svc.UnfavoritePattern(ctx, bob, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	starred, err = svc.IsFavorited(ctx, bob, p.Address)
	require.NoError(t, err)
	assert.False(t, starred)

	_, err = svc.UnfavoritePattern(ctx, bob, p.Address)
	require.ErrorIs(t, err, ErrNotFavorited)

	// Re-favoriting after unfavoriting is allowed.
	n, err = svc.FavoritePattern(ctx, bob, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	got, err := svc.GetPattern(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.FavoriteCount)
}

func TestFavoriteMissingPattern(t *testing.T) {
	svc, st := newService(t, 10)
	records := st.Len()
	_, err := svc.FavoritePattern(context.Background(), bob, address.Derive(address.KindPattern, []byte("nope")))
	require.ErrorIs(t, err, ErrPatternNotFound)
	assert.Equal(t, records, st.Len())
}

func TestUnfavoriteNeverBelowZero(t *testing.T) {
	svc, st := newService(t, 10)
	ctx := context.Background()
	p, err := svc.CreatePattern(ctx, alice, "x", blinkerCells(t))
	require.NoError(t, err)

	// Plant a favorite without bumping the count.
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		return putNew(tx, svc.favoriteAddress(bob, p.Address), address.KindFavorite,
			&entity.Favorite{User: bob, Pattern: p.Address})
	}))
	n, err := svc.UnfavoritePattern(ctx, bob, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestAdvancePattern(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()
	p, err := svc.CreatePattern(ctx, alice, "blinker", blinkerCells(t))
	require.NoError(t, err)

	_, err = svc.AdvancePattern(ctx, bob, p.Address, 1)
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = svc.AdvancePattern(ctx, alice, p.Address, 0)
	require.ErrorIs(t, err, ErrInvalidSteps)
	_, err = svc.AdvancePattern(ctx, alice, p.Address, DefaultMaxAdvanceSteps+1)
	require.ErrorIs(t, err, ErrInvalidSteps)

	one, err := svc.AdvancePattern(ctx, alice, p.Address, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), one.Generation)
	assert.Equal(t, life.Step(p.Grid()), one.Grid())

	three, err := svc.AdvancePattern(ctx, alice, p.Address, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), three.Generation)
	assert.Equal(t, p.Grid(), three.Grid(), "blinker has period two")

	got, err := svc.GetPattern(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, three, got)
}

func TestGalleryAndListByOwner(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()

	a1, err := svc.CreatePattern(ctx, alice, "a1", blinkerCells(t))
	require.NoError(t, err)
	b1, err := svc.CreatePattern(ctx, bob, "b1", blinkerCells(t))
	require.NoError(t, err)
	b2, err := svc.CreatePattern(ctx, bob, "b2", blinkerCells(t))
	require.NoError(t, err)

	for _, fan := range []address.Identity{alice, carol} {
		_, err = svc.FavoritePattern(ctx, fan, b2.Address)
		require.NoError(t, err)
	}
	_, err = svc.FavoritePattern(ctx, carol, a1.Address)
	require.NoError(t, err)

	mine, err := svc.ListByOwner(ctx, bob)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b1.Address, mine[0].Address)
	assert.Equal(t, b2.Address, mine[1].Address)

	g, err := svc.Gallery(ctx, alice)
	require.NoError(t, err)
	require.Len(t, g.Mine, 1)
	assert.Equal(t, a1.Address, g.Mine[0].Address)
	require.Len(t, g.Starred, 2)
	assert.Equal(t, b2.Address, g.Starred[0].Address)
	assert.Equal(t, a1.Address, g.Starred[1].Address)
	require.Len(t, g.Others, 2)
	assert.Equal(t, b1.Address, g.Others[0].Address)
}

func TestCustomDeriver(t *testing.T) {
	var calls atomic.Int32
	derive := func(kind address.Kind, seeds ...[]byte) address.Address {
		calls.Add(1)
		return address.Derive(kind, seeds...)
	}
	svc := New(memory.New(), Options{Derive: derive})
	_, err := svc.InitializeRegistry(context.Background(), alice)
	require.NoError(t, err)
	assert.Positive(t, calls.Load())
}

// backends opens each store implementation for concurrency tests.
var backends = map[string]func(t *testing.T) store.Store{
	"memory": func(*testing.T) store.Store { return memory.New() },
	"sqlite": func(t *testing.T) store.Store {
		st, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		return st
	},
}

func TestConcurrentDuplicateCreates(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			t.Cleanup(func() { _ = st.Close() })
			svc := New(st, Options{})
			ctx := context.Background()
			_, err := svc.InitializeRegistry(ctx, alice)
			require.NoError(t, err)

			cells := blinkerCells(t)
			var ok, dup atomic.Int32
			var g errgroup.Group
			for i := 0; i < 12; i++ {
				g.Go(func() error {
					_, err := svc.CreatePattern(ctx, alice, "race", cells)
					switch {
					case err == nil:
						ok.Add(1)
					case errors.Is(err, ErrAlreadyExists):
						dup.Add(1)
					default:
						return err
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			assert.Equal(t, int32(1), ok.Load())
			assert.Equal(t, int32(11), dup.Load())

			list, err := svc.ListRegistry(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestConcurrentFavorites(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()
	p, err := svc.CreatePattern(ctx, alice, "x", blinkerCells(t))
	require.NoError(t, err)

	fans := make([]address.Identity, 20)
	for i := range fans {
		fans[i] = address.IdentityFromName(strings.Repeat("f", i+1))
	}

	var dup atomic.Int32
	var g errgroup.Group
	for _, fan := range fans {
		for j := 0; j < 2; j++ {
			g.Go(func() error {
				_, err := svc.FavoritePattern(ctx, fan, p.Address)
				if errors.Is(err, ErrAlreadyFavorited) {
					dup.Add(1)
					return nil
				}
				return err
			})
		}
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(len(fans)), dup.Load())

	got, err := svc.GetPattern(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(fans)), got.FavoriteCount)

	rep, err := svc.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, rep.OK(), "%+v", rep.Issues)
	assert.Equal(t, len(fans), rep.Favorites)
}

func TestConcurrentUnfavorites(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			t.Cleanup(func() { _ = st.Close() })
			svc := New(st, Options{})
			ctx := context.Background()
			_, err := svc.InitializeRegistry(ctx, alice)
			require.NoError(t, err)
			p, err := svc.CreatePattern(ctx, alice, "x", blinkerCells(t))
			require.NoError(t, err)

			fans := []address.Identity{bob, carol}
			for _, fan := range fans {
				_, err := svc.FavoritePattern(ctx, fan, p.Address)
				require.NoError(t, err)
			}

			const attempts = 5
			ok := make([]atomic.Int32, len(fans))
			var notFavorited atomic.Int32
			var g errgroup.Group
			for i, fan := range fans {
				for j := 0; j < attempts; j++ {
					g.Go(func() error {
						_, err := svc.UnfavoritePattern(ctx, fan, p.Address)
						switch {
						case err == nil:
							ok[i].Add(1)
						case errors.Is(err, ErrNotFavorited):
							notFavorited.Add(1)
						default:
							return err
						}
						return nil
					})
				}
			}
			require.NoError(t, g.Wait())
			for i := range fans {
				assert.Equal(t, int32(1), ok[i].Load(), "fan %d", i)
			}
			assert.Equal(t, int32(len(fans)*(attempts-1)), notFavorited.Load())

			got, err := svc.GetPattern(ctx, p.Address)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), got.FavoriteCount)

			rep, err := svc.Verify(ctx)
			require.NoError(t, err)
			assert.True(t, rep.OK(), "%+v", rep.Issues)
			assert.Zero(t, rep.Favorites)
		})
	}
}
