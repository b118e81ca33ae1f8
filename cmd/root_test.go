package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairqueue/fqsim/sim"
	"github.com/fairqueue/fqsim/sim/workload"
)

// newFlagCommand returns a command carrying the run flags. Registering the
// flags resets the shared flag variables to their defaults.
func newFlagCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addSimulationFlags(cmd)
	cmd.Flags().StringVar(&policyName, "policy", string(sim.PolicyGPS), "")
	t.Cleanup(func() {
		configPath, departuresOut, summaryOut, configOut = "", "", "", ""
	})
	return cmd
}

func sampleRecords(t *testing.T) []sim.ArrivalRecord {
	t.Helper()
	records, err := workload.LoadTraceFile(filepath.Join("..", "testdata", "trace.txt"))
	require.NoError(t, err)
	return records
}

func TestBuildConfig_DefaultsWithoutFlags(t *testing.T) {
	cmd := newFlagCommand(t)

	cfg, err := buildConfig(cmd)

	require.NoError(t, err)
	want := sim.DefaultConfig(sim.PolicyGPS)
	want.Quantum = 0
	assert.Equal(t, want, *cfg)
}

func TestBuildConfig_ExplicitFlagsOverrideFile(t *testing.T) {
	// GIVEN a run file selecting DRR at rate 2 with a weight override
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: drr\nrate: 2\nquantum: 1500\nweights:\n  1: 3\n"), 0644))

	cmd := newFlagCommand(t)
	require.NoError(t, cmd.Flags().Set("config", path))
	require.NoError(t, cmd.Flags().Set("rate", "8"))
	require.NoError(t, cmd.Flags().Set("deficit-mode", "retain"))

	// WHEN the config is built
	cfg, err := buildConfig(cmd)
	require.NoError(t, err)

	// THEN set flags win and everything else comes from the file
	assert.Equal(t, sim.PolicyDRR, cfg.Policy)
	assert.Equal(t, 8.0, cfg.Rate)
	assert.Equal(t, int64(1500), cfg.Quantum)
	assert.Equal(t, sim.DeficitRetain, cfg.DeficitMode)
	assert.Equal(t, 3.0, cfg.Weights[1])
}

func TestBuildConfig_InvalidFlag(t *testing.T) {
	cmd := newFlagCommand(t)
	require.NoError(t, cmd.Flags().Set("policy", "wfq"))

	_, err := buildConfig(cmd)

	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestBuildConfig_MissingFile(t *testing.T) {
	cmd := newFlagCommand(t)
	require.NoError(t, cmd.Flags().Set("config", filepath.Join(t.TempDir(), "absent.yaml")))

	_, err := buildConfig(cmd)

	assert.Error(t, err)
}

func TestRunOnce_DrainsSampleTrace(t *testing.T) {
	records := sampleRecords(t)

	s, res, err := runOnce(context.Background(), sim.DefaultConfig(sim.PolicyRR), records)

	require.NoError(t, err)
	assert.Nil(t, s.Trace)
	assert.True(t, res.Drained)
	assert.Len(t, res.Departures, len(records))
	assert.Equal(t, res.ArrivedBits, res.DepartedBits)
}

func TestRunOnce_DecisionTrace(t *testing.T) {
	cfg := sim.DefaultConfig(sim.PolicyGPS)
	cfg.TraceLevel = "decisions"

	s, res, err := runOnce(context.Background(), cfg, sampleRecords(t))

	require.NoError(t, err)
	require.NotNil(t, s.Trace)
	assert.GreaterOrEqual(t, len(s.Trace.Services), len(res.Departures))
}

func TestRunOnce_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := runOnce(ctx, sim.DefaultConfig(sim.PolicyGPS), sampleRecords(t))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunOnce_LoadError(t *testing.T) {
	// Default DRR quantum is smaller than the 1000-bit packets of the sample
	_, _, err := runOnce(context.Background(), sim.DefaultConfig(sim.PolicyDRR), sampleRecords(t))

	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestCompareAll_EveryPolicyServesTheTrace(t *testing.T) {
	// GIVEN the sample trace and a quantum covering its largest packet
	records := sampleRecords(t)
	cfg := sim.DefaultConfig(sim.PolicyGPS)
	cfg.Quantum = 1000

	// WHEN all policies run concurrently
	results, err := compareAll(context.Background(), cfg, records)
	require.NoError(t, err)

	// THEN each policy reports its own complete log
	require.Len(t, results, len(sim.AllPolicies))
	for _, kind := range sim.AllPolicies {
		res := results[kind]
		require.NotNil(t, res, kind)
		assert.Equal(t, kind, res.Scheduler)
		assert.True(t, res.Drained, kind)
		assert.Len(t, res.Departures, len(records), kind)
	}
}

func TestCompareAll_DefaultFlagsServeSample(t *testing.T) {
	// GIVEN the configuration the CLI builds without any flags
	cfg, err := buildConfig(newFlagCommand(t))
	require.NoError(t, err)

	// WHEN the sample trace of 1000-bit packets is compared
	results, err := compareAll(context.Background(), *cfg, sampleRecords(t))

	// THEN DRR sizes its quantum to the packets instead of rejecting them
	require.NoError(t, err)
	for _, kind := range sim.AllPolicies {
		assert.True(t, results[kind].Drained, kind)
	}
}

func TestSaveConfig_ReloadsResolvedQuantum(t *testing.T) {
	newFlagCommand(t)
	configOut = filepath.Join(t.TempDir(), "resolved.yaml")
	cfg := sim.DefaultConfig(sim.PolicyDRR)
	cfg.Quantum = 0

	s, _, err := runOnce(context.Background(), cfg, sampleRecords(t))
	require.NoError(t, err)
	require.NoError(t, saveConfig(&s.Config))

	got, err := sim.LoadRunConfig(configOut)
	require.NoError(t, err)
	assert.Equal(t, sim.PolicyDRR, got.Policy)
	assert.Equal(t, int64(1000), got.Quantum)
}

func TestSaveConfig_NoPath(t *testing.T) {
	newFlagCommand(t)
	cfg := sim.DefaultConfig(sim.PolicyRR)
	assert.NoError(t, saveConfig(&cfg))
}

func TestSummarizeDepartures_MatchesRun(t *testing.T) {
	// GIVEN a departure CSV written by a two-policy run
	records := sampleRecords(t)
	_, rr, err := runOnce(context.Background(), sim.DefaultConfig(sim.PolicyRR), records)
	require.NoError(t, err)
	_, gps, err := runOnce(context.Background(), sim.DefaultConfig(sim.PolicyGPS), records)
	require.NoError(t, err)
	newFlagCommand(t)
	departuresOut = filepath.Join(t.TempDir(), "departures.csv")
	require.NoError(t, writeOutputs(map[sim.PolicyKind]*sim.Result{sim.PolicyRR: rr, sim.PolicyGPS: gps}))

	// WHEN it is summarized with the run's weights
	summaries, err := summarizeDepartures(departuresOut, gps.Weights, 1)
	require.NoError(t, err)

	// THEN each scheduler's summary matches the in-memory one
	require.Len(t, summaries, 2)
	for kind, res := range map[sim.PolicyKind]*sim.Result{sim.PolicyRR: rr, sim.PolicyGPS: gps} {
		want := res.Summary()
		got := summaries[kind]
		assert.Equal(t, want.TotalBits, got.TotalBits, kind)
		assert.InDelta(t, want.FairnessIndex, got.FairnessIndex, 1e-9, kind)
		assert.InDelta(t, want.Latency.Mean, got.Latency.Mean, 1e-9, kind)
	}
}

func TestSummarizeDepartures_Errors(t *testing.T) {
	_, err := summarizeDepartures(filepath.Join(t.TempDir(), "absent.csv"), nil, 1)
	assert.Error(t, err)

	_, err = summarizeDepartures("unused.csv", nil, 0)
	assert.Error(t, err)
}

func TestCompareAll_FailureCancelsRun(t *testing.T) {
	_, err := compareAll(context.Background(), sim.DefaultConfig(sim.PolicyGPS), sampleRecords(t))

	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestWriteOutputs_CSVAndJSON(t *testing.T) {
	// GIVEN results for two policies and both output paths set
	records := sampleRecords(t)
	_, rr, err := runOnce(context.Background(), sim.DefaultConfig(sim.PolicyRR), records)
	require.NoError(t, err)
	_, gps, err := runOnce(context.Background(), sim.DefaultConfig(sim.PolicyGPS), records)
	require.NoError(t, err)

	newFlagCommand(t)
	dir := t.TempDir()
	departuresOut = filepath.Join(dir, "departures.csv")
	summaryOut = filepath.Join(dir, "summary.json")

	// WHEN outputs are written
	require.NoError(t, writeOutputs(map[sim.PolicyKind]*sim.Result{sim.PolicyRR: rr, sim.PolicyGPS: gps}))

	// THEN the CSV holds the GPS log followed by the RR log
	f, err := os.Open(departuresOut)
	require.NoError(t, err)
	defer f.Close()
	deps, err := workload.LoadDepartures(f)
	require.NoError(t, err)
	require.Len(t, deps, 2*len(records))
	assert.Equal(t, sim.PolicyGPS, deps[0].Scheduler)
	assert.Equal(t, sim.PolicyRR, deps[len(deps)-1].Scheduler)

	// AND the JSON is keyed by scheduler
	data, err := os.ReadFile(summaryOut)
	require.NoError(t, err)
	var summaries map[string]sim.Summary
	require.NoError(t, json.Unmarshal(data, &summaries))
	assert.Contains(t, summaries, "gps")
	assert.Contains(t, summaries, "rr")
	assert.Equal(t, rr.DepartedBits, summaries["rr"].TotalBits)
}

func TestWriteOutputs_NothingRequested(t *testing.T) {
	newFlagCommand(t)

	assert.NoError(t, writeOutputs(map[sim.PolicyKind]*sim.Result{}))
}

func TestGenerateTrace_ParsesBack(t *testing.T) {
	// GIVEN two flows of uniform sizes from the flag defaults
	genSpecPath = ""
	genSeed, genHorizon, genFlows, genFlowRate = 7, 5000, 2, 0.01
	genMinSize, genMaxSize, genPackets = 100, 400, 10

	spec, err := generatorSpec()
	require.NoError(t, err)

	// WHEN written as a trace
	var buf bytes.Buffer
	n, err := generateTrace(spec, &buf)
	require.NoError(t, err)

	// THEN the text parses back into the same number of arrivals
	records, err := workload.ParseTrace(&buf)
	require.NoError(t, err)
	assert.Len(t, records, n)
	assert.LessOrEqual(t, n, 20)
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Size, int64(100))
		assert.LessOrEqual(t, r.Size, int64(400))
		assert.Less(t, r.Time, 5000.0)
	}
}

func TestWriteGenerated_File(t *testing.T) {
	genSpecPath = ""
	genSeed, genHorizon, genFlows, genFlowRate = 3, 2000, 3, 0.01
	genSize, genMaxSize, genPackets = 800, 0, 0
	t.Cleanup(func() { genFlows, genSize = 2, 1000 })

	spec, err := generatorSpec()
	require.NoError(t, err)
	assert.Equal(t, int64(800), spec.LargestPacket())

	path := filepath.Join(t.TempDir(), "gen.txt")
	n, err := writeGenerated(spec, path)
	require.NoError(t, err)

	records, err := workload.LoadTraceFile(path)
	require.NoError(t, err)
	assert.Len(t, records, n)
	for _, r := range records {
		assert.Equal(t, int64(800), r.Size)
	}
}

func TestGeneratorSpec_RejectsZeroFlows(t *testing.T) {
	genSpecPath = ""
	genFlows = 0
	t.Cleanup(func() { genFlows = 2 })

	_, err := generatorSpec()

	assert.Error(t, err)
}
