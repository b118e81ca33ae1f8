// Computes per-flow throughput, latency distributions and fairness from a departure log.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// FlowSummary holds the statistics of a single flow.
type FlowSummary struct {
	Flow                 FlowID       `json:"flow_id"`
	Weight               float64      `json:"weight"`
	Packets              int          `json:"packets"`
	SentBits             int64        `json:"sent_bits"`
	Throughput           float64      `json:"throughput"`            // bits per time unit over the run span
	NormalizedThroughput float64      `json:"normalized_throughput"` // Throughput / Weight
	MeanLatency          float64      `json:"mean_latency"`
	P99Latency           float64      `json:"p99_latency"`
	Latency              LatencyStats `json:"latency"`
	QueueingDelay        LatencyStats `json:"queueing_delay"` // latency minus own transmission time
}

// Summary aggregates statistics about one run for final reporting.
type Summary struct {
	Scheduler     PolicyKind             `json:"scheduler"`
	Start         float64                `json:"start"` // earliest arrival in the log
	End           float64                `json:"end"`   // latest departure in the log
	Elapsed       float64                `json:"elapsed"`
	TotalBits     int64                  `json:"total_bits"`
	Throughput    float64                `json:"throughput"`
	PerFlow       map[FlowID]FlowSummary `json:"per_flow"`
	Latency       LatencyStats           `json:"latency"`
	FairnessIndex float64                `json:"fairness_index"` // Jain's index over Throughput / Weight
}

// ComputeSummary is a pure function over a departure log. weights supplies
// the weight of every flow that should be judged for fairness, including
// flows that never departed; flows missing from weights count with weight 1.
// rate is the service rate, used to separate queueing delay from
// transmission time.
func ComputeSummary(log []Departure, weights map[FlowID]float64, rate float64) Summary {
	s := Summary{PerFlow: make(map[FlowID]FlowSummary)}
	if len(log) > 0 {
		s.Scheduler = log[0].Scheduler
		s.Start = math.Inf(1)
		s.End = math.Inf(-1)
	}

	latencies := make(map[FlowID][]float64)
	delays := make(map[FlowID][]float64)
	all := make([]float64, 0, len(log))
	for _, d := range log {
		s.Start = math.Min(s.Start, d.ArrivalTime)
		s.End = math.Max(s.End, d.DepartureTime)
		s.TotalBits += d.Size
		fs := s.PerFlow[d.Flow]
		fs.Flow = d.Flow
		fs.Packets++
		fs.SentBits += d.Size
		s.PerFlow[d.Flow] = fs
		lat := d.Latency()
		latencies[d.Flow] = append(latencies[d.Flow], lat)
		all = append(all, lat)
		if rate > 0 {
			delays[d.Flow] = append(delays[d.Flow], lat-float64(d.Size)/rate)
		}
	}
	for id := range weights {
		if _, ok := s.PerFlow[id]; !ok {
			s.PerFlow[id] = FlowSummary{Flow: id}
		}
	}
	if len(log) > 0 {
		s.Elapsed = s.End - s.Start
	}
	if s.Elapsed > 0 {
		s.Throughput = float64(s.TotalBits) / s.Elapsed
	}
	s.Latency = NewLatencyStats(all)

	ids := maps.Keys(s.PerFlow)
	slices.Sort(ids)
	normalized := make([]float64, 0, len(ids))
	for _, id := range ids {
		fs := s.PerFlow[id]
		fs.Weight = 1
		if w, ok := weights[id]; ok && w > 0 {
			fs.Weight = w
		}
		if s.Elapsed > 0 {
			fs.Throughput = float64(fs.SentBits) / s.Elapsed
		}
		fs.NormalizedThroughput = fs.Throughput / fs.Weight
		fs.Latency = NewLatencyStats(latencies[id])
		fs.QueueingDelay = NewLatencyStats(delays[id])
		fs.MeanLatency = fs.Latency.Mean
		fs.P99Latency = fs.Latency.P99
		s.PerFlow[id] = fs
		normalized = append(normalized, fs.NormalizedThroughput)
	}
	s.FairnessIndex = JainIndex(normalized)
	return s
}

// Summary computes the metrics of a finished run.
func (r *Result) Summary() Summary {
	s := ComputeSummary(r.Departures, r.Weights, r.Rate)
	s.Scheduler = r.Scheduler
	return s
}

// Print displays the summary as a human-readable table.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "=== %s ===\n", s.Scheduler)
	fmt.Fprintf(w, "Span             : %g .. %g (%g time units)\n", s.Start, s.End, s.Elapsed)
	fmt.Fprintf(w, "Bits serviced    : %d\n", s.TotalBits)
	fmt.Fprintf(w, "Throughput       : %.4f bits/unit\n", s.Throughput)
	fmt.Fprintf(w, "Latency mean/p99 : %.4f / %.4f\n", s.Latency.Mean, s.Latency.P99)
	fmt.Fprintf(w, "Fairness (Jain)  : %.4f\n", s.FairnessIndex)
	ids := maps.Keys(s.PerFlow)
	slices.Sort(ids)
	fmt.Fprintf(w, "%6s %8s %8s %12s %12s %12s %12s\n", "flow", "weight", "packets", "throughput", "mean_lat", "p99_lat", "mean_qdelay")
	for _, id := range ids {
		fs := s.PerFlow[id]
		fmt.Fprintf(w, "%6d %8g %8d %12.4f %12.4f %12.4f %12.4f\n",
			fs.Flow, fs.Weight, fs.Packets, fs.Throughput, fs.MeanLatency, fs.P99Latency, fs.QueueingDelay.Mean)
	}
}

// SaveResults writes summaries keyed by scheduler name as indented JSON.
func SaveResults(path string, summaries map[PolicyKind]Summary) error {
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
