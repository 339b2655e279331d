package main

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lifereg/internal/registry"
	"lifereg/pkg/sims/life"
)

type scanResult struct {
	pattern registry.Summary
	gens    int
	start   int
	period  int
	cycle   bool
}

func (a *app) scanCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find the cycle of every published pattern in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.svc.ListRegistry(cmd.Context())
			if err != nil {
				return err
			}
			start := time.Now()
			results, err := scanPatterns(cmd.Context(), list, workers, a.cfg.Simulation.Batch, a.cfg.Simulation.Limit)
			if err != nil {
				return err
			}
			a.logger.Debug("scan finished",
				zap.Int("patterns", len(results)),
				zap.Int("workers", workers),
				zap.Duration("elapsed", time.Since(start)))

			sort.SliceStable(results, func(i, j int) bool {
				return results[i].period > results[j].period
			})
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tID\tGENS\tCYCLE")
			for _, r := range results {
				cycle := "none"
				if r.cycle {
					cycle = fmt.Sprintf("period %d from %d", r.period, r.start)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.pattern.Address.Short(), r.pattern.ID, r.gens, cycle)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of worker goroutines")
	return cmd
}

// scanPatterns runs each pattern's timeline to exhaustion on a bounded pool.
// Results keep the input order.
func scanPatterns(ctx context.Context, list []registry.Summary, workers, batch, limit int) ([]scanResult, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]scanResult, len(list))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range list {
		g.Go(func() error {
			tl := life.NewTimeline(p.Grid(), batch, limit)
			for !tl.Exhausted() {
				if err := ctx.Err(); err != nil {
					return err
				}
				tl.Extend()
			}
			start, period, ok := tl.Cycle()
			results[i] = scanResult{pattern: p, gens: tl.Len(), start: start, period: period, cycle: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
