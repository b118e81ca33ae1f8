package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fairqueue/fqsim/sim"
	"github.com/fairqueue/fqsim/sim/workload"
)

var (
	sumDepartures string  // Departure CSV written by run or compare
	sumConfig     string  // Optional run configuration for weights
	sumRate       float64 // Service rate used to split queueing delay from transmission
)

// summarizeCmd recomputes summaries from a saved departure log
var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Recompute per-scheduler summaries from a departure CSV",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg := sim.DefaultConfig(sim.PolicyGPS)
		if sumConfig != "" {
			loaded, err := sim.LoadRunConfig(sumConfig)
			if err != nil {
				logrus.Fatalf("Invalid configuration: %v", err)
			}
			cfg = *loaded
		}
		if cmd.Flags().Changed("rate") {
			cfg.Rate = sumRate
		}

		summaries, err := summarizeDepartures(sumDepartures, cfg.Weights, cfg.Rate)
		if err != nil {
			logrus.Fatalf("Summarizing departures: %v", err)
		}
		for _, kind := range sim.AllPolicies {
			if s, ok := summaries[kind]; ok {
				s.Print(os.Stdout)
			}
		}
		if summaryOut != "" {
			if err := sim.SaveResults(summaryOut, summaries); err != nil {
				logrus.Fatalf("Writing summary: %v", err)
			}
		}
	},
}

// summarizeDepartures groups a departure CSV by scheduler and summarizes each
// log. Flows without a weight in weights count with weight 1.
func summarizeDepartures(path string, weights map[sim.FlowID]float64, rate float64) (map[sim.PolicyKind]sim.Summary, error) {
	if !(rate > 0) {
		return nil, fmt.Errorf("rate must be positive, got %g", rate)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening departure log: %w", err)
	}
	defer file.Close()

	deps, err := workload.LoadDepartures(file)
	if err != nil {
		return nil, err
	}
	logs := make(map[sim.PolicyKind][]sim.Departure)
	for _, d := range deps {
		logs[d.Scheduler] = append(logs[d.Scheduler], d)
	}
	summaries := make(map[sim.PolicyKind]sim.Summary, len(logs))
	for kind, log := range logs {
		summaries[kind] = sim.ComputeSummary(log, weights, rate)
	}
	return summaries, nil
}

func init() {
	summarizeCmd.Flags().StringVar(&sumDepartures, "departures", "", "Departure CSV written with --departures-out")
	summarizeCmd.Flags().StringVar(&sumConfig, "config", "", "YAML run configuration supplying weights and rate")
	summarizeCmd.Flags().Float64Var(&sumRate, "rate", 1.0, "Service rate in bits per time unit")
	summarizeCmd.Flags().StringVar(&summaryOut, "summary-out", "", "Write the summaries as JSON keyed by scheduler to this path")
	summarizeCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	_ = summarizeCmd.MarkFlagRequired("departures")
}
