package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fairqueue/fqsim/sim"
	"github.com/fairqueue/fqsim/sim/workload"
)

var (
	genSpecPath string  // YAML generator spec; overrides the flags below
	genOut      string  // Output trace path ("" = stdout)
	genSeed     int64   // Generator seed
	genHorizon  float64 // Arrivals stop at this time
	genFlows    int     // Number of flows, ids 1..n
	genFlowRate float64 // Packets per time unit per flow
	genSize     int64   // Fixed packet size in bits
	genMinSize  int64   // Uniform size lower bound (with --max-size)
	genMaxSize  int64   // Uniform size upper bound
	genPackets  int     // Per-flow packet cap (0 = unlimited)
)

// generateCmd writes a synthetic Poisson arrival trace
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic arrival trace",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec, err := generatorSpec()
		if err != nil {
			logrus.Fatalf("Invalid generator spec: %v", err)
		}

		n, err := writeGenerated(spec, genOut)
		if err != nil {
			logrus.Fatalf("Generating trace: %v", err)
		}
		logrus.Infof("Generated %d arrivals; DRR quanta must cover %d bits", n, spec.LargestPacket())
	},
}

// generatorSpec loads --spec when given, otherwise builds n identical flows
// from the flags.
func generatorSpec() (*workload.GeneratorSpec, error) {
	if genSpecPath != "" {
		return workload.LoadGeneratorSpec(genSpecPath)
	}
	if genFlows <= 0 {
		return nil, fmt.Errorf("--flows must be positive, got %d", genFlows)
	}
	sizes := workload.SizeSpec{Type: workload.SizeFixed, Size: genSize}
	if genMaxSize > 0 {
		sizes = workload.SizeSpec{Type: workload.SizeUniform, Min: genMinSize, Max: genMaxSize}
	}
	spec := &workload.GeneratorSpec{
		Seed:    genSeed,
		Horizon: genHorizon,
		Packets: genPackets,
	}
	for i := 1; i <= genFlows; i++ {
		spec.Flows = append(spec.Flows, workload.FlowSpec{
			ID:    sim.FlowID(i),
			Rate:  genFlowRate,
			Sizes: sizes,
		})
	}
	return spec, nil
}

// writeGenerated writes the generated trace to path, or to stdout when path is empty.
func writeGenerated(spec *workload.GeneratorSpec, path string) (int, error) {
	if path == "" {
		return generateTrace(spec, os.Stdout)
	}
	records, err := workload.Generate(spec)
	if err != nil {
		return 0, err
	}
	if err := workload.SaveTraceFile(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func generateTrace(spec *workload.GeneratorSpec, w io.Writer) (int, error) {
	records, err := workload.Generate(spec)
	if err != nil {
		return 0, err
	}
	if err := workload.WriteTrace(w, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func init() {
	generateCmd.Flags().StringVar(&genSpecPath, "spec", "", "YAML generator spec (overrides the flow flags)")
	generateCmd.Flags().StringVar(&genOut, "out", "", "Output trace path (default stdout)")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 42, "Seed for the arrival streams")
	generateCmd.Flags().Float64Var(&genHorizon, "horizon", 10000, "Generate arrivals before this time")
	generateCmd.Flags().IntVar(&genFlows, "flows", 2, "Number of flows")
	generateCmd.Flags().Float64Var(&genFlowRate, "flow-rate", 0.001, "Mean packets per time unit for each flow")
	generateCmd.Flags().Int64Var(&genSize, "size", 1000, "Fixed packet size in bits")
	generateCmd.Flags().Int64Var(&genMinSize, "min-size", 64, "Minimum packet size in bits when --max-size is set")
	generateCmd.Flags().Int64Var(&genMaxSize, "max-size", 0, "Maximum packet size in bits; enables uniform sizes")
	generateCmd.Flags().IntVar(&genPackets, "packets", 0, "Per-flow packet cap (0 = unlimited)")
	generateCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
}
