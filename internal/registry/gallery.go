package registry

import (
	"context"
	"sort"

	"lifereg/internal/address"
)

// Gallery groups the feed the way the browsing view presents it. Starred and
// the other two sections may overlap.
type Gallery struct {
	Mine    []Summary
	Starred []Summary
	Others  []Summary
}

// ListByOwner returns owner's published patterns in feed order.
func (s *Service) ListByOwner(ctx context.Context, owner address.Identity) ([]Summary, error) {
	all, err := s.ListRegistry(ctx)
	if err != nil {
		return nil, err
	}
	var mine []Summary
	for _, p := range all {
		if p.Owner == owner {
			mine = append(mine, p)
		}
	}
	return mine, nil
}

// Gallery splits the feed for viewer: their own patterns, every starred
// pattern by descending stars, and patterns owned by someone else.
func (s *Service) Gallery(ctx context.Context, viewer address.Identity) (Gallery, error) {
	all, err := s.ListRegistry(ctx)
	if err != nil {
		return Gallery{}, err
	}
	var g Gallery
	for _, p := range all {
		if p.Owner == viewer {
			g.Mine = append(g.Mine, p)
		} else {
			g.Others = append(g.Others, p)
		}
		if p.FavoriteCount > 0 {
			g.Starred = append(g.Starred, p)
		}
	}
	sort.SliceStable(g.Starred, func(i, j int) bool {
		return g.Starred[i].FavoriteCount > g.Starred[j].FavoriteCount
	})
	return g, nil
}
