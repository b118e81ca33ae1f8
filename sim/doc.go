// Package sim provides the discrete-event engine and fair-queueing policies of fqsim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - packet.go, flow.go: Packets and the Flow Model (per-flow FIFO backlog and scheduling state)
//   - event.go, event_queue.go: Event types and the (timestamp, sequence) ordered event engine
//   - simulator.go: Arrival loading, the event loop and the departure log
//
// # Policies
//
// A Policy decides which packet departs next and when. The set is closed:
//   - gps.go: bit-by-bit Generalized Processor Sharing via the virtual-time potential
//   - rr.go: Round-Robin, one packet per active flow per rotation
//   - drr.go: Deficit Round-Robin with per-flow quanta and deficit counters
//
// A policy is chosen once per Simulator with NewPolicy and never changes
// during a run. Simulators share no state, so the same trace may be evaluated
// under every policy in parallel.
//
// # Results
//
// Run returns a Result holding the departure log. ComputeSummary turns a log
// into per-flow throughput, latency distributions and Jain's fairness index.
// Trace parsing and synthetic traffic live in sim/workload.
package sim
