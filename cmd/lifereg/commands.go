package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lifereg/internal/address"
	"lifereg/internal/registry"
	"lifereg/internal/render"
	"lifereg/pkg/bitmap"
	"lifereg/pkg/core"
	"lifereg/pkg/sims/life"
)

func (a *app) initCmd() *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the shared registry",
		Long: `Creates the registry feed. With --authority the caller must present the
derived authority address (see "lifereg authority").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				feed address.Address
				err  error
			)
			if authority != "" {
				claimed, perr := address.Parse(authority)
				if perr != nil {
					return fmt.Errorf("parse authority: %w", perr)
				}
				feed, err = a.svc.InitializeAuthorityGatedRegistry(cmd.Context(), a.caller(), claimed)
			} else {
				feed, err = a.svc.InitializeRegistry(cmd.Context(), a.caller())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registry %s (capacity %d)\n", feed, a.svc.Capacity())
			return nil
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "authority address (hex)")
	return cmd
}

func (a *app) authorityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authority",
		Short: "Print the derived registry and authority addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "registry  %s\n", a.svc.RegistryAddress())
			fmt.Fprintf(out, "authority %s\n", a.svc.AuthorityAddress())
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	var (
		id      string
		cells   string
		seed    int64
		density float64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a pattern into the registry",
		Long: `Publishes a pattern owned by --as. Live cells come from --cells as
"row,col;row,col", or from a seeded random fill when --density is set.`,
		Example: `  lifereg create --as alice --id glider --cells "0,1;1,2;2,0;2,1;2,2"
  lifereg create --as alice --id soup --density 0.3 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf []byte
			switch {
			case density > 0:
				bm := bitmap.EncodeGrid(core.RandomGrid(seed, density))
				buf = bm[:]
			default:
				parsed, err := bitmap.ParseCells(cells)
				if err != nil {
					return err
				}
				buf, err = bitmap.Encode(parsed, core.GridSize)
				if err != nil {
					return err
				}
			}
			p, err := a.svc.CreatePattern(cmd.Context(), a.caller(), id, buf)
			if err != nil {
				return err
			}
			g := p.Grid()
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (%d live cells)\n",
				p.Address, p.ID, g.Population())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "pattern id (at most 32 bytes)")
	f.StringVar(&cells, "cells", "", `live cells as "row,col;row,col"`)
	f.Int64Var(&seed, "seed", 42, "seed for --density fills")
	f.Float64Var(&density, "density", 0, "random fill density in (0,1]")
	_ = cmd.MarkFlagRequired("id")
	cmd.MarkFlagsMutuallyExclusive("cells", "density")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published patterns in feed order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				list []registry.Summary
				err  error
			)
			if owner != "" {
				list, err = a.svc.ListByOwner(cmd.Context(), identity(owner))
			} else {
				list, err = a.svc.ListRegistry(cmd.Context())
			}
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only patterns owned by this user")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var (
		pngPath string
		scale   int
	)
	cmd := &cobra.Command{
		Use:   "show OWNER ID",
		Short: "Print one pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.patternArgs(args)
			if err != nil {
				return err
			}
			p, err := a.svc.GetPattern(cmd.Context(), addr)
			if err != nil {
				return err
			}
			starred, err := a.svc.IsFavorited(cmd.Context(), a.caller(), addr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address     %s\n", p.Address)
			fmt.Fprintf(out, "owner       %s\n", p.Owner)
			fmt.Fprintf(out, "id          %s\n", p.ID)
			fmt.Fprintf(out, "generation  %d\n", p.Generation)
			fmt.Fprintf(out, "stars       %d (starred by you: %t)\n", p.FavoriteCount, starred)
			fmt.Fprintf(out, "cells       %s\n", bitmap.FormatCells(bitmap.Decode(p.Cells[:], core.GridSize)))
			if pngPath == "" {
				fmt.Fprint(out, render.Text(p.Grid(), '#', '.'))
				return nil
			}
			f, err := os.Create(pngPath)
			if err != nil {
				return err
			}
			if err := render.WritePNG(f, p.Grid(), scale); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "write the grid as a PNG image instead of text")
	cmd.Flags().IntVar(&scale, "scale", 4, "pixels per cell for --png")
	return cmd
}

func (a *app) starCmd(star bool) *cobra.Command {
	use, short := "star", "Star a pattern"
	if !star {
		use, short = "unstar", "Remove your star from a pattern"
	}
	return &cobra.Command{
		Use:   use + " OWNER ID",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.patternArgs(args)
			if err != nil {
				return err
			}
			var n uint64
			if star {
				n, err = a.svc.FavoritePattern(cmd.Context(), a.caller(), addr)
			} else {
				n, err = a.svc.UnfavoritePattern(cmd.Context(), a.caller(), addr)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d stars\n", args[1], n)
			return nil
		},
	}
}

func (a *app) advanceCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "advance ID",
		Short: "Step one of your patterns forward and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.svc.PatternAddress(a.caller(), args[0])
			if err != nil {
				return err
			}
			p, err := a.svc.AdvancePattern(cmd.Context(), a.caller(), addr, steps)
			if err != nil {
				return err
			}
			g := p.Grid()
			fmt.Fprintf(cmd.OutOrStdout(), "%s at generation %d (%d live cells)\n",
				p.ID, p.Generation, g.Population())
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "generations to advance")
	return cmd
}

func (a *app) galleryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gallery",
		Short: "Browse the feed grouped for the --as user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.svc.Gallery(cmd.Context(), a.caller())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sections := []struct {
				title string
				list  []registry.Summary
			}{
				{"My Patterns", g.Mine},
				{"Starred Patterns", g.Starred},
				{"Other Patterns", g.Others},
			}
			shown := false
			for _, s := range sections {
				if len(s.list) == 0 {
					continue
				}
				shown = true
				fmt.Fprintf(out, "== %s ==\n", s.title)
				printSummaries(out, s.list)
			}
			if !shown {
				fmt.Fprintln(out, "No patterns published yet.")
			}
			return nil
		},
	}
}

func (a *app) simulateCmd() *cobra.Command {
	var (
		batches int
		frames  int
	)
	cmd := &cobra.Command{
		Use:   "simulate OWNER ID",
		Short: "Compute a pattern's history and report its cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.patternArgs(args)
			if err != nil {
				return err
			}
			p, err := a.svc.GetPattern(cmd.Context(), addr)
			if err != nil {
				return err
			}
			sim := a.cfg.Simulation
			tl := life.NewTimeline(p.Grid(), sim.Batch, sim.Limit)
			for i := 1; i < batches && !tl.Exhausted(); i++ {
				tl.Extend()
			}

			out := cmd.OutOrStdout()
			for i := 0; i < frames && tl.Seek(i); i++ {
				cur := tl.Current()
				fmt.Fprintf(out, "-- generation %d (%d live) --\n", i, cur.Population())
				fmt.Fprint(out, render.Text(tl.Current(), '#', '.'))
			}
			fmt.Fprintln(out, describeTimeline(tl))
			return nil
		},
	}
	cmd.Flags().IntVar(&batches, "batches", 1, "history batches to compute")
	cmd.Flags().IntVar(&frames, "frames", 0, "print the first N generations")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Audit the store for integrity problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.svc.Verify(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d patterns, %d favorites, %d feed entries\n",
				rep.Patterns, rep.Favorites, rep.Entries)
			for _, is := range rep.Issues {
				fmt.Fprintf(out, "%s %s: %s\n", is.Kind, is.Address.Short(), is.Problem)
			}
			if !rep.OK() {
				return fmt.Errorf("%d integrity issues", len(rep.Issues))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

func describeTimeline(tl *life.Timeline) string {
	if start, period, ok := tl.Cycle(); ok {
		if period == 1 {
			return fmt.Sprintf("still life from generation %d", start)
		}
		return fmt.Sprintf("cycle of period %d from generation %d", period, start)
	}
	if tl.Exhausted() {
		return fmt.Sprintf("no cycle within %d generations", tl.Len())
	}
	return fmt.Sprintf("no cycle in %d generations computed so far", tl.Len())
}

func printSummaries(w io.Writer, list []registry.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tOWNER\tID\tGEN\tSTARS\tLIVE")
	for _, p := range list {
		g := p.Grid()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			p.Address.Short(), p.Owner.Short(), p.ID, p.Generation, p.FavoriteCount, g.Population())
	}
	_ = tw.Flush()
}
