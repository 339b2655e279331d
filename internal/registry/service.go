// Package registry implements the pattern registry operations: publishing
// patterns into the bounded feed, starring and unstarring them, and reading
// them back. Every operation runs as one store transaction, and uniqueness
// rests entirely on the store's create-if-absent at derived addresses.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lifereg/internal/address"
	"lifereg/internal/entity"
	"lifereg/internal/store"
	"lifereg/pkg/bitmap"
	"lifereg/pkg/core"
	"lifereg/pkg/sims/life"
)

const (
	// DefaultCapacity is the feed size used when Options leaves it unset.
	DefaultCapacity = 100
	// MaxCapacity is the largest feed New accepts; larger values are clamped.
	MaxCapacity = 1 << 16
	// DefaultMaxAdvanceSteps bounds the simulation work of one AdvancePattern.
	DefaultMaxAdvanceSteps = 1000
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Capacity        int
	MaxAdvanceSteps int
	Logger          *zap.Logger
	Derive          address.Deriver
}

// Service runs registry operations against a store.
type Service struct {
	store    store.Store
	capacity uint32
	maxSteps int
	log      *zap.Logger
	derive   address.Deriver
	tracer   trace.Tracer
}

// Summary is a pattern as returned to callers.
type Summary struct {
	Address       address.Address
	Owner         address.Identity
	ID            string
	Cells         bitmap.Bitmap
	Generation    uint64
	FavoriteCount uint64
}

// Grid decodes the stored bitmap.
func (s Summary) Grid() core.Grid { return bitmap.DecodeGrid(s.Cells) }

// New builds a Service over st.
func New(st store.Store, opts Options) *Service {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxAdvanceSteps <= 0 {
		opts.MaxAdvanceSteps = DefaultMaxAdvanceSteps
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Capacity > MaxCapacity {
		opts.Logger.Warn("feed capacity clamped",
			zap.Int("requested", opts.Capacity), zap.Int("max", MaxCapacity))
		opts.Capacity = MaxCapacity
	}
	if opts.Derive == nil {
		opts.Derive = address.Derive
	}
	return &Service{
		store:    st,
		capacity: uint32(opts.Capacity),
		maxSteps: opts.MaxAdvanceSteps,
		log:      opts.Logger.Named("registry"),
		derive:   opts.Derive,
		tracer:   otel.Tracer("lifereg/internal/registry"),
	}
}

// RegistryAddress is the singleton feed address.
func (s *Service) RegistryAddress() address.Address {
	return s.derive(address.KindRegistry)
}

// AuthorityAddress is the address an authority-gated initializer must present.
func (s *Service) AuthorityAddress() address.Address {
	return s.derive(address.KindRegistryAuthority)
}

// PatternAddress derives where owner's pattern named id lives.
func (s *Service) PatternAddress(owner address.Identity, id string) (address.Address, error) {
	pid, err := patternID(id)
	if err != nil {
		return address.Address{}, err
	}
	return s.patternAddress(owner, pid), nil
}

func (s *Service) patternAddress(owner address.Identity, id entity.PatternID) address.Address {
	return s.derive(address.KindPattern, owner[:], id.Bytes())
}

func (s *Service) favoriteAddress(user address.Identity, pattern address.Address) address.Address {
	return s.derive(address.KindFavorite, user[:], pattern[:])
}

// InitializeRegistry creates the empty feed.
func (s *Service) InitializeRegistry(ctx context.Context, caller address.Identity) (address.Address, error) {
	return s.initialize(ctx, caller, address.Address{})
}

// InitializeAuthorityGatedRegistry creates the empty feed only when claimed is
// the derived authority address. The check happens before any write.
func (s *Service) InitializeAuthorityGatedRegistry(ctx context.Context, caller address.Identity, claimed address.Address) (address.Address, error) {
	if claimed != s.AuthorityAddress() {
		s.log.Debug("rejected feed authority",
			zap.String("caller", caller.Short()), zap.String("claimed", claimed.Short()))
		return address.Address{}, ErrInvalidAuthority
	}
	return s.initialize(ctx, caller, claimed)
}

func (s *Service) initialize(ctx context.Context, caller address.Identity, authority address.Address) (address.Address, error) {
	feed := s.RegistryAddress()
	reg := entity.Registry{Authority: authority, Capacity: s.capacity}
	err := s.update(ctx, "InitializeRegistry", []attribute.KeyValue{
		attribute.String("caller", caller.String()),
	}, func(tx store.Tx) error {
		err := putNew(tx, feed, address.KindRegistry, &reg)
		if errors.Is(err, store.ErrOccupied) {
			return ErrAlreadyExists
		}
		return err
	})
	if err != nil {
		return address.Address{}, err
	}
	s.log.Info("feed initialized",
		zap.String("caller", caller.Short()),
		zap.String("feed", feed.Short()),
		zap.Uint32("capacity", s.capacity),
		zap.Bool("authority_gated", !authority.IsZero()))
	return feed, nil
}

// CreatePattern publishes a pattern owned by caller and appends it to the
// feed. If the feed is full nothing is written.
func (s *Service) CreatePattern(ctx context.Context, caller address.Identity, id string, cells []byte) (Summary, error) {
	bm, ok := bitmap.FromBytes(cells)
	if !ok {
		return Summary{}, wrapError(CodeInvalidBitmapSize, ErrInvalidBitmapSize.Message,
			fmt.Errorf("got %d bytes", len(cells)))
	}
	pid, err := patternID(id)
	if err != nil {
		return Summary{}, err
	}
	addr := s.patternAddress(caller, pid)
	p := entity.Pattern{Owner: caller, ID: pid, Cells: bm}

	var entries int
	err = s.update(ctx, "CreatePattern", []attribute.KeyValue{
		attribute.String("owner", caller.String()),
		attribute.String("pattern", addr.String()),
	}, func(tx store.Tx) error {
		if err := putNew(tx, addr, address.KindPattern, &p); err != nil {
			if errors.Is(err, store.ErrOccupied) {
				return ErrAlreadyExists
			}
			return err
		}
		reg, err := loadRegistry(tx, s.RegistryAddress())
		if err != nil {
			return err
		}
		if !reg.Append(addr) {
			return ErrRegistryFull
		}
		entries = len(reg.Entries)
		return putExisting(tx, s.RegistryAddress(), address.KindRegistry, &reg)
	})
	if err != nil {
		return Summary{}, err
	}
	s.log.Info("pattern created",
		zap.String("owner", caller.Short()),
		zap.String("id", id),
		zap.String("pattern", addr.Short()),
		zap.Int("feed_entries", entries))
	return summarize(addr, p), nil
}

// FavoritePattern stars pattern for caller and returns the new star count.
func (s *Service) FavoritePattern(ctx context.Context, caller address.Identity, pattern address.Address) (uint64, error) {
	fav := s.favoriteAddress(caller, pattern)
	var count uint64
	err := s.update(ctx, "FavoritePattern", []attribute.KeyValue{
		attribute.String("user", caller.String()),
		attribute.String("pattern", pattern.String()),
	}, func(tx store.Tx) error {
		p, err := loadPattern(tx, pattern)
		if err != nil {
			return err
		}
		rec := entity.Favorite{User: caller, Pattern: pattern}
		if err := putNew(tx, fav, address.KindFavorite, &rec); err != nil {
			if errors.Is(err, store.ErrOccupied) {
				return ErrAlreadyFavorited
			}
			return err
		}
		if p.FavoriteCount == ^uint64(0) {
			return ErrCounterOverflow
		}
		p.FavoriteCount++
		count = p.FavoriteCount
		return putExisting(tx, pattern, address.KindPattern, &p)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("pattern starred",
		zap.String("user", caller.Short()),
		zap.String("pattern", pattern.Short()),
		zap.Uint64("stars", count))
	return count, nil
}

// UnfavoritePattern removes caller's star from pattern and returns the new
// star count.
func (s *Service) UnfavoritePattern(ctx context.Context, caller address.Identity, pattern address.Address) (uint64, error) {
	fav := s.favoriteAddress(caller, pattern)
	var count uint64
	err := s.update(ctx, "UnfavoritePattern", []attribute.KeyValue{
		attribute.String("user", caller.String()),
		attribute.String("pattern", pattern.String()),
	}, func(tx store.Tx) error {
		if err := tx.Delete(fav); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFavorited
			}
			return fmt.Errorf("delete favorite: %w", err)
		}
		p, err := loadPattern(tx, pattern)
		if err != nil {
			return err
		}
		if p.FavoriteCount == 0 {
			s.log.Warn("star count already zero on unstar", zap.String("pattern", pattern.Short()))
		} else {
			p.FavoriteCount--
		}
		count = p.FavoriteCount
		return putExisting(tx, pattern, address.KindPattern, &p)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("pattern unstarred",
		zap.String("user", caller.Short()),
		zap.String("pattern", pattern.Short()),
		zap.Uint64("stars", count))
	return count, nil
}

// AdvancePattern lets the owner run the stored pattern steps generations
// forward, replacing its cells and bumping its generation counter.
func (s *Service) AdvancePattern(ctx context.Context, caller address.Identity, pattern address.Address, steps int) (Summary, error) {
	if steps < 1 || steps > s.maxSteps {
		return Summary{}, wrapError(CodeInvalidSteps, ErrInvalidSteps.Message,
			fmt.Errorf("%d not in [1, %d]", steps, s.maxSteps))
	}
	var p entity.Pattern
	err := s.update(ctx, "AdvancePattern", []attribute.KeyValue{
		attribute.String("owner", caller.String()),
		attribute.String("pattern", pattern.String()),
		attribute.Int("steps", steps),
	}, func(tx store.Tx) error {
		var err error
		p, err = loadPattern(tx, pattern)
		if err != nil {
			return err
		}
		if p.Owner != caller {
			return ErrNotOwner
		}
		if p.Generation > ^uint64(0)-uint64(steps) {
			return ErrCounterOverflow
		}
		p.Cells = bitmap.EncodeGrid(life.Advance(bitmap.DecodeGrid(p.Cells), steps))
		p.Generation += uint64(steps)
		return putExisting(tx, pattern, address.KindPattern, &p)
	})
	if err != nil {
		return Summary{}, err
	}
	s.log.Info("pattern advanced",
		zap.String("pattern", pattern.Short()),
		zap.Int("steps", steps),
		zap.Uint64("generation", p.Generation))
	return summarize(pattern, p), nil
}

// GetPattern reads one pattern.
func (s *Service) GetPattern(ctx context.Context, pattern address.Address) (Summary, error) {
	var out Summary
	err := s.view(ctx, "GetPattern", func(tx store.Tx) error {
		p, err := loadPattern(tx, pattern)
		if err != nil {
			return err
		}
		out = summarize(pattern, p)
		return nil
	})
	return out, err
}

// IsFavorited reports whether user has starred pattern.
func (s *Service) IsFavorited(ctx context.Context, user address.Identity, pattern address.Address) (bool, error) {
	var found bool
	err := s.view(ctx, "IsFavorited", func(tx store.Tx) error {
		_, err := tx.Get(s.favoriteAddress(user, pattern))
		switch {
		case err == nil:
			found = true
		case errors.Is(err, store.ErrNotFound):
		default:
			return fmt.Errorf("get favorite: %w", err)
		}
		return nil
	})
	return found, err
}

// ListRegistry returns every published pattern in feed order.
func (s *Service) ListRegistry(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := s.view(ctx, "ListRegistry", func(tx store.Tx) error {
		reg, err := loadRegistry(tx, s.RegistryAddress())
		if err != nil {
			return err
		}
		out = make([]Summary, 0, len(reg.Entries))
		for _, a := range reg.Entries {
			p, err := loadPattern(tx, a)
			if err != nil {
				return fmt.Errorf("feed entry %s: %w", a.Short(), err)
			}
			out = append(out, summarize(a, p))
		}
		return nil
	})
	return out, err
}

// Capacity is the feed size new registries are created with.
func (s *Service) Capacity() int { return int(s.capacity) }

func (s *Service) update(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(store.Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(attrs...))
	defer span.End()

	opID := uuid.NewString()
	span.SetAttributes(attribute.String("op_id", opID))
	err := s.store.Update(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := CodeOf(err); code != "" {
			s.log.Debug("operation rejected",
				zap.String("op", op), zap.String("op_id", opID), zap.String("code", string(code)))
		} else {
			s.log.Error("operation failed",
				zap.String("op", op), zap.String("op_id", opID), zap.Error(err))
		}
		return err
	}
	s.log.Debug("operation committed", zap.String("op", op), zap.String("op_id", opID))
	return nil
}

func (s *Service) view(ctx context.Context, op string, fn func(store.Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "registry."+op)
	defer span.End()
	if err := s.store.View(ctx, fn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func patternID(id string) (entity.PatternID, error) {
	pid, err := entity.NewPatternID(id)
	switch {
	case errors.Is(err, entity.ErrIDTooLong):
		return pid, wrapError(CodeIDTooLong, ErrIDTooLong.Message, err)
	case errors.Is(err, entity.ErrInvalidID):
		return pid, ErrInvalidID
	}
	return pid, err
}

func summarize(a address.Address, p entity.Pattern) Summary {
	return Summary{
		Address:       a,
		Owner:         p.Owner,
		ID:            p.ID.String(),
		Cells:         p.Cells,
		Generation:    p.Generation,
		FavoriteCount: p.FavoriteCount,
	}
}
