package registry

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"lifereg/internal/address"
	"lifereg/internal/entity"
	"lifereg/internal/store"
)

// Issue is one integrity violation found by Verify.
type Issue struct {
	Address address.Address
	Kind    address.Kind
	Problem string
}

// Report summarizes a Verify pass.
type Report struct {
	Patterns  int
	Favorites int
	Entries   int
	Issues    []Issue
}

// OK reports whether no issues were found.
func (r Report) OK() bool { return len(r.Issues) == 0 }

// Verify audits the store: every record sits at the address its seeds derive,
// every feed entry resolves, every pattern is in the feed, and each pattern's
// star count equals the number of favorites pointing at it.
func (s *Service) Verify(ctx context.Context) (Report, error) {
	var rep Report
	err := s.view(ctx, "Verify", func(tx store.Tx) error {
		reg, err := loadRegistry(tx, s.RegistryAddress())
		if err != nil {
			return err
		}
		rep.Entries = len(reg.Entries)
		inFeed := make(map[address.Address]bool, len(reg.Entries))
		for _, a := range reg.Entries {
			if inFeed[a] {
				rep.add(a, address.KindRegistry, "duplicate feed entry")
			}
			inFeed[a] = true
		}

		stars := map[address.Address]uint64{}
		err = tx.Scan(address.KindFavorite, func(a address.Address, r store.Record) error {
			rep.Favorites++
			f, err := decodeFavorite(a, r)
			if err != nil {
				rep.add(a, address.KindFavorite, err.Error())
				return nil
			}
			if want := s.favoriteAddress(f.User, f.Pattern); want != a {
				rep.add(a, address.KindFavorite, "stored at "+a.Short()+", derives to "+want.Short())
			}
			stars[f.Pattern]++
			return nil
		})
		if err != nil {
			return err
		}

		patterns := map[address.Address]entity.Pattern{}
		err = tx.Scan(address.KindPattern, func(a address.Address, r store.Record) error {
			rep.Patterns++
			var p entity.Pattern
			if err := p.UnmarshalBinary(r.Data); err != nil {
				rep.add(a, address.KindPattern, err.Error())
				return nil
			}
			patterns[a] = p
			if want := s.patternAddress(p.Owner, p.ID); want != a {
				rep.add(a, address.KindPattern, "stored at "+a.Short()+", derives to "+want.Short())
			}
			if !inFeed[a] {
				rep.add(a, address.KindPattern, "not in feed")
			}
			if got := stars[a]; got != p.FavoriteCount {
				rep.add(a, address.KindPattern, fmt.Sprintf("star count %d, favorites %d", p.FavoriteCount, got))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, a := range reg.Entries {
			if _, ok := patterns[a]; !ok {
				rep.add(a, address.KindRegistry, "feed entry does not resolve")
			}
		}
		var missing []address.Address
		for a := range stars {
			if _, ok := patterns[a]; !ok {
				missing = append(missing, a)
			}
		}
		slices.SortFunc(missing, func(x, y address.Address) int { return bytes.Compare(x[:], y[:]) })
		for _, a := range missing {
			rep.add(a, address.KindFavorite, "favorite of missing pattern")
		}
		return nil
	})
	return rep, err
}

func (r *Report) add(a address.Address, kind address.Kind, problem string) {
	r.Issues = append(r.Issues, Issue{Address: a, Kind: kind, Problem: problem})
}
