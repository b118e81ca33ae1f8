package sim

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Flow holds one flow's backlog and the scheduling state every policy may read.
// Flows live in the FlowTable arena for the whole run; an empty flow is simply
// inactive until its next arrival.
type Flow struct {
	ID     FlowID
	Index  int     // Stable arena index, never reused
	Weight float64 // > 0; GPS share and DRR quantum multiplier

	backlog Backlog
	active  bool

	// GPS: virtual finish of the most recently stamped packet.
	VirtualFinish float64

	// DRR bit credit and per-visit grant.
	Deficit int64
	Quantum int64

	ArrivedPackets int
	ArrivedBits    int64
	MaxPacketSize  int64
}

// Active reports whether the flow has a non-empty backlog.
func (f *Flow) Active() bool { return f.active }

// Len returns the number of queued packets.
func (f *Flow) Len() int { return f.backlog.Len() }

// Bits returns the number of queued bits.
func (f *Flow) Bits() int64 { return f.backlog.Bits() }

// Head returns the head-of-line packet, or nil when inactive.
func (f *Flow) Head() *Packet { return f.backlog.Peek() }

func (f *Flow) String() string {
	return fmt.Sprintf("Flow: (ID: %d, Weight: %g, Active: %t, Backlog: %s)", f.ID, f.Weight, f.active, &f.backlog)
}

// FlowTable is the Flow Model: an arena of flows indexed by a stable integer
// plus the sorted list of known identifiers that RR and DRR rotate over.
type FlowTable struct {
	flows []*Flow
	byID  map[FlowID]int
	order []FlowID // sorted ascending, only ever grows
}

// NewFlowTable creates an empty flow table.
func NewFlowTable() *FlowTable {
	return &FlowTable{
		flows: make([]*Flow, 0),
		byID:  make(map[FlowID]int),
		order: make([]FlowID, 0),
	}
}

// Enqueue appends p to its flow's backlog, creating the flow with the given
// weight if it has not been seen yet. Weight is ignored for known flows.
// activated is true when the flow transitioned from inactive to active.
func (ft *FlowTable) Enqueue(p *Packet, weight float64) (flow *Flow, activated bool, err error) {
	if p == nil {
		panic("Enqueue: packet must not be nil")
	}
	if p.Size <= 0 {
		return nil, false, flowConfigErr(p.Flow, "size", p.Size, "packet size must be positive")
	}
	flow, ok := ft.Get(p.Flow)
	if !ok {
		flow, err = ft.addFlow(p.Flow, weight)
		if err != nil {
			return nil, false, err
		}
	}
	activated = !flow.active
	flow.backlog.Enqueue(p)
	flow.active = true
	flow.ArrivedPackets++
	flow.ArrivedBits += p.Size
	flow.MaxPacketSize = max(flow.MaxPacketSize, p.Size)
	return flow, activated, nil
}

func (ft *FlowTable) addFlow(id FlowID, weight float64) (*Flow, error) {
	if !(weight > 0) {
		return nil, flowConfigErr(id, "weight", weight, "weight must be positive")
	}
	f := &Flow{ID: id, Index: len(ft.flows), Weight: weight}
	ft.flows = append(ft.flows, f)
	ft.byID[id] = f.Index
	pos, _ := slices.BinarySearch(ft.order, id)
	ft.order = slices.Insert(ft.order, pos, id)
	return f, nil
}

// Get returns the flow with the given identifier.
func (ft *FlowTable) Get(id FlowID) (*Flow, bool) {
	idx, ok := ft.byID[id]
	if !ok {
		return nil, false
	}
	return ft.flows[idx], true
}

// PeekHead returns the head-of-line packet of a flow without removing it.
func (ft *FlowTable) PeekHead(id FlowID) (*Packet, bool) {
	f, ok := ft.Get(id)
	if !ok || !f.active {
		return nil, false
	}
	return f.backlog.Peek(), true
}

// DequeueHead removes and returns the head-of-line packet of a flow.
// Dequeuing from an inactive or unknown flow is a policy bug.
func (ft *FlowTable) DequeueHead(id FlowID) (*Packet, error) {
	f, ok := ft.Get(id)
	if !ok || !f.active {
		return nil, &EmptyFlowError{Flow: id}
	}
	p := f.backlog.Dequeue()
	if f.backlog.Len() == 0 {
		f.active = false
	}
	return p, nil
}

// ActiveFlows returns a snapshot of the identifiers of active flows in ascending order.
func (ft *FlowTable) ActiveFlows() []FlowID {
	active := make([]FlowID, 0, len(ft.order))
	for _, id := range ft.order {
		if ft.flows[ft.byID[id]].active {
			active = append(active, id)
		}
	}
	return active
}

// Order returns the identifiers of every known flow in ascending order.
// The returned slice is the table's internal storage and MUST NOT be modified.
func (ft *FlowTable) Order() []FlowID {
	return ft.order
}

// Flows returns every known flow in arena order.
// The returned slice is the table's internal storage and MUST NOT be modified.
func (ft *FlowTable) Flows() []*Flow {
	return ft.flows
}

// Len returns the number of known flows.
func (ft *FlowTable) Len() int {
	return len(ft.flows)
}

// AnyActive reports whether at least one flow has backlog.
func (ft *FlowTable) AnyActive() bool {
	for _, f := range ft.flows {
		if f.active {
			return true
		}
	}
	return false
}

// Backlog returns the number of queued packets and bits across all flows.
func (ft *FlowTable) Backlog() (packets int, bits int64) {
	for _, f := range ft.flows {
		packets += f.backlog.Len()
		bits += f.backlog.Bits()
	}
	return packets, bits
}

// NextActive walks the sorted identifier list cyclically, starting at the first
// identifier strictly greater than after, and returns the first active flow.
// With started false the walk begins at the smallest identifier.
func (ft *FlowTable) NextActive(after FlowID, started bool) (*Flow, bool) {
	n := len(ft.order)
	if n == 0 {
		return nil, false
	}
	start := 0
	if started {
		pos, found := slices.BinarySearch(ft.order, after)
		if found {
			pos++
		}
		start = pos
	}
	for i := 0; i < n; i++ {
		f := ft.flows[ft.byID[ft.order[(start+i)%n]]]
		if f.active {
			return f, true
		}
	}
	return nil, false
}
