// Package trace provides decision-trace recording for scheduling analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// ServiceRecord captures one service decision: which packet a policy picked
// at Clock and when it planned the departure.
type ServiceRecord struct {
	Clock     float64
	PacketID  int64
	Flow      int
	Departure float64
	Deficit   int64 // DRR credit left after the pick; 0 for other policies
	Replan    bool  // supersedes an earlier plan that had not fired
}

// StaleRecord captures a planned departure discarded because a later
// decision replaced it.
type StaleRecord struct {
	Clock     float64 // when the stale event was discarded
	PacketID  int64
	Departure float64 // the abandoned departure time
}
