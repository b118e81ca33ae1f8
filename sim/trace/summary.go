package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions   int
	Replans          int
	StalePlans       int
	MeanLookahead    float64 // mean of Departure - Clock over decisions
	MaxLookahead     float64
	UniqueFlows      int
	FlowDistribution map[int]int // flow ID → count of service decisions
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		FlowDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Services)
	summary.StalePlans = len(st.Stale)
	if len(st.Services) > 0 {
		total := 0.0
		for _, r := range st.Services {
			summary.FlowDistribution[r.Flow]++
			if r.Replan {
				summary.Replans++
			}
			ahead := r.Departure - r.Clock
			total += ahead
			if ahead > summary.MaxLookahead {
				summary.MaxLookahead = ahead
			}
		}
		summary.MeanLookahead = total / float64(len(st.Services))
	}

	summary.UniqueFlows = len(summary.FlowDistribution)

	return summary
}
