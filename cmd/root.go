package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fairqueue/fqsim/sim"
	"github.com/fairqueue/fqsim/sim/trace"
	"github.com/fairqueue/fqsim/sim/workload"
)

var (
	// CLI flags shared by run and compare
	tracePath       string  // Arrival trace in the tab-separated text format
	configPath      string  // Optional YAML run configuration
	policyName      string  // Scheduling policy for run
	rate            float64 // Service rate in bits per time unit
	quantum         int64   // DRR base quantum in bits
	quantumByWeight bool    // Scale DRR quanta by flow weight
	deficitMode     string  // DRR leftover-credit handling
	horizon         float64 // Stop before events past this time (0 = unbounded)
	maxPacketSize   int64   // Largest admissible packet (0 = derived from trace)
	traceLevel      string  // Decision trace verbosity
	logLevel        string  // Log verbosity level
	departuresOut   string  // Departure log CSV path
	summaryOut      string  // Summary JSON path
	configOut       string  // Resolved run configuration YAML path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "fqsim",
	Short: "Discrete-event simulator for fair-queueing output ports",
}

// runCmd executes one simulation using parameters from the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduling policy over an arrival trace",
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
		logrus.Infof("Loaded %d arrivals from %s", len(records), tracePath)

		s, res, err := runOnce(cmd.Context(), *cfg, records)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		summary := res.Summary()
		summary.Print(os.Stdout)
		if s.Trace != nil {
			printTraceSummary(trace.Summarize(s.Trace))
		}
		if err := writeOutputs(map[sim.PolicyKind]*sim.Result{res.Scheduler: res}); err != nil {
			logrus.Fatalf("Writing outputs: %v", err)
		}
		if err := saveConfig(&s.Config); err != nil {
			logrus.Fatalf("Writing run configuration: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildConfig starts from the YAML run file (or the defaults) and applies
// every flag the user set explicitly. Without a run file the DRR quantum
// follows --quantum, whose default of 0 sizes it to the trace.
func buildConfig(cmd *cobra.Command) (*sim.Config, error) {
	cfg := sim.DefaultConfig(sim.PolicyGPS)
	cfg.Quantum = quantum
	if configPath != "" {
		loaded, err := sim.LoadRunConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = sim.PolicyKind(policyName)
	}
	if flags.Changed("rate") {
		cfg.Rate = rate
	}
	if flags.Changed("quantum") {
		cfg.Quantum = quantum
	}
	if flags.Changed("quantum-by-weight") {
		cfg.QuantumByWeight = quantumByWeight
	}
	if flags.Changed("deficit-mode") {
		cfg.DeficitMode = sim.DeficitMode(deficitMode)
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("max-packet-size") {
		cfg.MaxPacketSize = maxPacketSize
	}
	if flags.Changed("trace-level") {
		cfg.TraceLevel = traceLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// runOnce builds a simulator for cfg, loads records and steps it until it
// stops or ctx is cancelled.
func runOnce(ctx context.Context, cfg sim.Config, records []sim.ArrivalRecord) (*sim.Simulator, *sim.Result, error) {
	s, err := sim.NewSimulator(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Load(records); err != nil {
		return nil, nil, fmt.Errorf("loading arrivals: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		more, err := s.Step()
		if err != nil {
			return nil, nil, err
		}
		if !more {
			break
		}
	}
	res := s.Result()
	if !res.Drained {
		logrus.Warnf("%s: %d packets (%d bits) unserved at t=%g", cfg.Policy, res.UnservedPackets, res.UnservedBits, res.EndTime)
	}
	return s, res, nil
}

// writeOutputs writes the departure CSV and summary JSON when requested.
// With several results the CSV holds every log, in policy order.
func writeOutputs(results map[sim.PolicyKind]*sim.Result) error {
	if departuresOut != "" {
		var deps []sim.Departure
		for _, kind := range sim.AllPolicies {
			if res, ok := results[kind]; ok {
				deps = append(deps, res.Departures...)
			}
		}
		if err := workload.ExportDeparturesFile(departuresOut, deps); err != nil {
			return err
		}
		logrus.Infof("Departure log written to %s", departuresOut)
	}
	if summaryOut != "" {
		summaries := make(map[sim.PolicyKind]sim.Summary, len(results))
		for kind, res := range results {
			summaries[kind] = res.Summary()
		}
		if err := sim.SaveResults(summaryOut, summaries); err != nil {
			return err
		}
		logrus.Infof("Summary written to %s", summaryOut)
	}
	return nil
}

// saveConfig writes cfg as YAML when --config-out is set. The file can be
// passed back through --config to repeat the run.
func saveConfig(cfg *sim.Config) error {
	if configOut == "" {
		return nil
	}
	if err := cfg.Save(configOut); err != nil {
		return err
	}
	logrus.Infof("Run configuration written to %s", configOut)
	return nil
}

func printTraceSummary(ts *trace.TraceSummary) {
	fmt.Println("=== Decision Trace ===")
	fmt.Printf("Decisions        : %d (%d replans)\n", ts.TotalDecisions, ts.Replans)
	fmt.Printf("Stale plans      : %d\n", ts.StalePlans)
	fmt.Printf("Lookahead mean/max: %.4f / %.4f\n", ts.MeanLookahead, ts.MaxLookahead)
	fmt.Printf("Flows served     : %d\n", ts.UniqueFlows)
}

// addSimulationFlags registers the flags shared by run and compare.
func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tracePath, "trace", "", "Arrival trace file (flow<TAB>size<TAB>time[<TAB>weight])")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration; explicit flags override it")
	cmd.Flags().Float64Var(&rate, "rate", 1.0, "Service rate in bits per time unit")
	cmd.Flags().Int64Var(&quantum, "quantum", 0, "DRR base quantum in bits (0 = smallest that covers every packet)")
	cmd.Flags().BoolVar(&quantumByWeight, "quantum-by-weight", false, "Scale each DRR quantum by its flow weight")
	cmd.Flags().StringVar(&deficitMode, "deficit-mode", string(sim.DeficitReset), "DRR deficit handling when a flow drains (reset, retain)")
	cmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon (0 = run until drained)")
	cmd.Flags().Int64Var(&maxPacketSize, "max-packet-size", 0, "Largest admissible packet in bits (0 = no limit)")
	cmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Decision trace level (none, decisions)")
	cmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().StringVar(&departuresOut, "departures-out", "", "Write the departure log as CSV to this path")
	cmd.Flags().StringVar(&summaryOut, "summary-out", "", "Write the summary as JSON keyed by scheduler to this path")
	cmd.Flags().StringVar(&configOut, "config-out", "", "Write the resolved run configuration as YAML to this path")
	_ = cmd.MarkFlagRequired("trace")
}

// init sets up CLI flags and subcommands
func init() {
	addSimulationFlags(runCmd)
	runCmd.Flags().StringVar(&policyName, "policy", string(sim.PolicyGPS), "Scheduling policy (gps, rr, drr)")

	addSimulationFlags(compareCmd)

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(summarizeCmd)
}
