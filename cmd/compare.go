package cmd

import (
	"context"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fairqueue/fqsim/sim"
	"github.com/fairqueue/fqsim/sim/workload"
)

// compareCmd runs every policy over the same trace and reports them side by side
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run GPS, RR and DRR over the same trace concurrently",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := buildConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		records, err := workload.LoadTraceFile(tracePath)
		if err != nil {
			logrus.Fatalf("Unable to load trace: %v", err)
		}

		results, err := compareAll(cmd.Context(), *cfg, records)
		if err != nil {
			logrus.Fatalf("Comparison failed: %v", err)
		}
		for _, kind := range sim.AllPolicies {
			summary := results[kind].Summary()
			summary.Print(os.Stdout)
		}
		if err := writeOutputs(results); err != nil {
			logrus.Fatalf("Writing outputs: %v", err)
		}
		if err := saveConfig(cfg); err != nil {
			logrus.Fatalf("Writing run configuration: %v", err)
		}
	},
}

// compareAll runs one independent simulator per policy. The first failure
// cancels the remaining runs.
func compareAll(ctx context.Context, base sim.Config, records []sim.ArrivalRecord) (map[sim.PolicyKind]*sim.Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	results := make(map[sim.PolicyKind]*sim.Result, len(sim.AllPolicies))
	for _, kind := range sim.AllPolicies {
		kind := kind
		cfg := base
		cfg.Policy = kind
		g.Go(func() error {
			_, res, err := runOnce(ctx, cfg, records)
			if err != nil {
				return err
			}
			mu.Lock()
			results[kind] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
