package sim

import "fmt"

// rotation is the cyclic service pointer shared by RR and DRR. It remembers
// the last flow that finished a turn; the next turn goes to the first active
// flow with a larger identifier, wrapping around. Storing the identifier
// rather than a raw index keeps the pointer valid when new flows are inserted
// into the sorted identifier list.
type rotation struct {
	last    FlowID
	started bool
}

func (r *rotation) next(flows *FlowTable) (*Flow, bool) {
	return flows.NextActive(r.last, r.started)
}

func (r *rotation) passed(id FlowID) {
	r.last = id
	r.started = true
}

// RRPolicy serves one packet from each active flow per rotation, in
// ascending flow-identifier order, skipping inactive flows.
type RRPolicy struct {
	flows     *FlowTable
	rate      float64
	pointer   rotation
	inService *Packet
}

// NewRRPolicy creates a round-robin policy serving at rate bits per time unit.
func NewRRPolicy(flows *FlowTable, rate float64) *RRPolicy {
	return &RRPolicy{flows: flows, rate: rate}
}

func (rr *RRPolicy) Kind() PolicyKind { return PolicyRR }

func (rr *RRPolicy) Fluid() bool { return false }

func (rr *RRPolicy) OnArrival(_ float64, _ *Flow, _ *Packet, _ bool) error {
	// Rotation membership is the active flag itself.
	return nil
}

func (rr *RRPolicy) NextDeparture(now float64) (*Packet, float64, error) {
	if rr.inService != nil {
		return nil, 0, fmt.Errorf("rr: service decision while packet %d is in transmission", rr.inService.ID)
	}
	f, ok := rr.pointer.next(rr.flows)
	if !ok {
		return nil, 0, nil
	}
	p, err := rr.flows.DequeueHead(f.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("rr: %w", err)
	}
	rr.pointer.passed(f.ID)
	p.StartTime = now
	rr.inService = p
	return p, now + p.TransmissionTime(rr.rate), nil
}

func (rr *RRPolicy) OnDeparture(_ float64, p *Packet) error {
	if rr.inService != p {
		return fmt.Errorf("rr: departure of packet %d which is not in transmission", p.ID)
	}
	rr.inService = nil
	return nil
}
