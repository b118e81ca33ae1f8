package sim

import "github.com/sirupsen/logrus"

// EventKind discriminates simulation events.
type EventKind string

const (
	EventArrival   EventKind = "arrival"
	EventDeparture EventKind = "departure"
	EventService   EventKind = "service" // scheduler-internal decision tick
)

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in simulated time units) and an Execute method
// that advances simulation state when invoked.
type Event interface {
	Timestamp() float64
	Kind() EventKind
	Execute(*Simulator) error
}

// ArrivalEvent represents a packet reaching the contended output queue.
type ArrivalEvent struct {
	time   float64
	Packet *Packet
	Weight float64 // Weight used if this arrival creates the flow
}

// NewArrivalEvent creates an arrival for p at its arrival time.
func NewArrivalEvent(p *Packet, weight float64) *ArrivalEvent {
	return &ArrivalEvent{time: p.ArrivalTime, Packet: p, Weight: weight}
}

// Timestamp returns the scheduled time of the ArrivalEvent.
func (e *ArrivalEvent) Timestamp() float64 { return e.time }

// Kind returns EventArrival.
func (e *ArrivalEvent) Kind() EventKind { return EventArrival }

// Execute enqueues the packet and asks for a service decision if one is due.
func (e *ArrivalEvent) Execute(sim *Simulator) error {
	logrus.Debugf("<< Arrival: packet %d flow %d size %d at t=%g", e.Packet.ID, e.Packet.Flow, e.Packet.Size, e.time)
	return sim.handleArrival(e)
}

// DepartureEvent represents the last bit of a packet leaving the output port.
type DepartureEvent struct {
	time   float64
	Packet *Packet
}

// Timestamp returns the scheduled time of the DepartureEvent.
func (e *DepartureEvent) Timestamp() float64 { return e.time }

// Kind returns EventDeparture.
func (e *DepartureEvent) Kind() EventKind { return EventDeparture }

// Execute records the departure unless the event was superseded by a newer plan.
func (e *DepartureEvent) Execute(sim *Simulator) error {
	if sim.pendingDeparture != e {
		logrus.Tracef("<< Stale departure: packet %d at t=%g", e.Packet.ID, e.time)
		return nil
	}
	logrus.Debugf("<< Departure: packet %d flow %d at t=%g", e.Packet.ID, e.Packet.Flow, e.time)
	return sim.handleDeparture(e)
}

// ServiceEvent asks the active policy for its next departure.
// It is scheduled at the current time, so every arrival sharing that
// timestamp is enqueued before the decision is made.
type ServiceEvent struct {
	time float64
}

// Timestamp returns the scheduled time of the ServiceEvent.
func (e *ServiceEvent) Timestamp() float64 { return e.time }

// Kind returns EventService.
func (e *ServiceEvent) Kind() EventKind { return EventService }

// Execute runs a scheduling decision.
func (e *ServiceEvent) Execute(sim *Simulator) error {
	logrus.Tracef("<< Service decision at t=%g", e.time)
	return sim.handleService(e)
}
