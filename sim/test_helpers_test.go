package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// rec builds an arrival record with default weight.
func rec(flow FlowID, size int64, at float64) ArrivalRecord {
	return ArrivalRecord{Flow: flow, Size: size, Time: at}
}

// weighted builds an arrival record carrying a weight.
func weighted(flow FlowID, size int64, at, weight float64) ArrivalRecord {
	return ArrivalRecord{Flow: flow, Size: size, Time: at, Weight: weight}
}

// burst returns n same-size records for one flow, all at time at.
func burst(flow FlowID, n int, size int64, at float64) []ArrivalRecord {
	out := make([]ArrivalRecord, n)
	for i := range out {
		out[i] = rec(flow, size, at)
	}
	return out
}

// runConfig builds a simulator for cfg, loads records and runs it to completion.
func runConfig(t testing.TB, cfg Config, records []ArrivalRecord) *Result {
	t.Helper()
	s, err := NewSimulator(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(records))
	res, err := s.Run()
	require.NoError(t, err)
	return res
}

// runPolicy runs records under kind at unit rate with the given DRR quantum.
func runPolicy(t testing.TB, kind PolicyKind, quantum int64, records []ArrivalRecord) *Result {
	t.Helper()
	cfg := DefaultConfig(kind)
	if quantum > 0 {
		cfg.Quantum = quantum
	}
	return runConfig(t, cfg, records)
}

// departureFlows returns the flow of each departure in log order.
func departureFlows(deps []Departure) []FlowID {
	out := make([]FlowID, len(deps))
	for i, d := range deps {
		out[i] = d.Flow
	}
	return out
}

// departureTimes returns the departure time of each entry in log order.
func departureTimes(deps []Departure) []float64 {
	out := make([]float64, len(deps))
	for i, d := range deps {
		out[i] = d.DepartureTime
	}
	return out
}

// bitsBy sums departed bits per flow over departures at or before t.
func bitsBy(deps []Departure, t float64) map[FlowID]int64 {
	out := make(map[FlowID]int64)
	for _, d := range deps {
		if d.DepartureTime <= t {
			out[d.Flow] += d.Size
		}
	}
	return out
}
