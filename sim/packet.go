// Defines the Packet struct that models an individual packet moving through the contended output queue.
// Tracks arrival, service start and departure timestamps plus the GPS virtual-time stamps.

package sim

import (
	"fmt"
)

// FlowID identifies a flow. Lower identifiers win GPS finish-time ties and
// define the cyclic service order of RR and DRR.
type FlowID int

// Packet is an opaque unit of Size bits belonging to one flow.
// Owned by its flow's backlog until serviced, then frozen in the departure log.
type Packet struct {
	ID   int64  // Sequential identifier assigned in load order
	Flow FlowID // Owning flow
	Size int64  // Size in bits, > 0

	ArrivalTime   float64 // Time the packet reached the switch
	EnqueueTime   float64 // Time the packet joined its flow's backlog
	StartTime     float64 // Transmission start (RR/DRR) or time it became head-of-line (GPS)
	DepartureTime float64 // Valid only when Departed is true
	Departed      bool

	// GPS stamps; zero under RR and DRR.
	VirtualStart  float64
	VirtualFinish float64
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet: (ID: %d, Flow: %d, Size: %d, ArrivalTime: %g)", p.ID, p.Flow, p.Size, p.ArrivalTime)
}

// TransmissionTime returns how long the packet occupies a server of the given rate.
func (p *Packet) TransmissionTime(rate float64) float64 {
	return float64(p.Size) / rate
}
