// sim/simulator.go
package sim

import (
	"fmt"
	"math"

	"github.com/fairqueue/fqsim/sim/trace"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SimState is the lifecycle state of a Simulator.
type SimState string

const (
	StateIdle    SimState = "idle"    // constructed, arrivals may be loaded
	StateRunning SimState = "running" // processing events
	StateDrained SimState = "drained" // event queue empty and every flow inactive
	StateHalted  SimState = "halted"  // stopped at the horizon with work left
	StateFailed  SimState = "failed"  // aborted by an error
)

// ArrivalRecord is one input record: a packet of Size bits for Flow arriving at Time.
// Weight is optional (0 means default) and only read when the record creates its flow.
type ArrivalRecord struct {
	Flow   FlowID
	Size   int64
	Time   float64
	Weight float64
}

// Departure is one entry of the departure log.
type Departure struct {
	PacketID      int64      `json:"packet_id"`
	Flow          FlowID     `json:"flow_id"`
	Size          int64      `json:"size"`
	ArrivalTime   float64    `json:"arrival_time"`
	StartTime     float64    `json:"start_time"`
	DepartureTime float64    `json:"departure_time"`
	Scheduler     PolicyKind `json:"scheduler"`
}

// Latency returns departure minus arrival.
func (d Departure) Latency() float64 { return d.DepartureTime - d.ArrivalTime }

// Result is what a finished run hands to reporting collaborators.
type Result struct {
	Scheduler  PolicyKind
	Rate       float64
	State      SimState
	Drained    bool
	EndTime    float64
	Departures []Departure
	Weights    map[FlowID]float64

	ArrivedPackets  int
	ArrivedBits     int64
	DepartedBits    int64
	UnservedPackets int // backlog plus any packet in transmission at the horizon
	UnservedBits    int64
}

// Simulator is the core object that holds the event queue, the flow table,
// the active policy and the departure log of a single run. Simulators share no
// state with each other, so independent runs may execute in parallel.
type Simulator struct {
	Config Config
	Events *EventQueue
	Flows  *FlowTable
	Policy Policy
	State  SimState
	Trace  *trace.SimulationTrace // nil unless Config.TraceLevel records decisions

	departures       []Departure
	pendingDeparture *DepartureEvent // current plan; older departure events are stale
	serviceScheduled bool
	nextPacketID     int64
	lastLoadTime     float64
	loadedPackets    int
	loadedBits       int64
	maxSize          map[FlowID]int64 // largest packet per flow, for DRR validation
	weights          map[FlowID]float64
	failure          error
}

// NewSimulator validates cfg and creates a simulator in the Idle state.
func NewSimulator(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	flows := NewFlowTable()
	s := &Simulator{
		Config:     cfg,
		Events:     NewEventQueue(),
		Flows:      flows,
		State:      StateIdle,
		departures: make([]Departure, 0),
		maxSize:    make(map[FlowID]int64),
		weights:    make(map[FlowID]float64),
	}
	policy, err := NewPolicy(&s.Config, flows)
	if err != nil {
		return nil, err
	}
	s.Policy = policy
	if level := trace.TraceLevel(cfg.TraceLevel); level.Enabled() {
		s.Trace = trace.NewSimulationTrace(level)
	}
	return s, nil
}

// Load validates arrival records and schedules one arrival event per record.
// All validation happens here, before Running: sizes and weights must be
// positive, records must be in non-decreasing time order, and under DRR every
// flow's quantum must cover its largest packet. A zero DRR base quantum is
// sized by the first batch that carries packets and stays fixed afterwards.
// On error nothing is scheduled.
func (sim *Simulator) Load(records []ArrivalRecord) error {
	if sim.State != StateIdle {
		return fmt.Errorf("load: simulator is %s, arrivals can only be loaded while idle", sim.State)
	}
	maxSize := make(map[FlowID]int64, len(sim.maxSize))
	for id, sz := range sim.maxSize {
		maxSize[id] = sz
	}
	weights := make(map[FlowID]float64, len(sim.weights))
	for id, w := range sim.weights {
		weights[id] = w
	}
	last := sim.lastLoadTime
	for i, r := range records {
		if r.Size <= 0 {
			return fmt.Errorf("record %d: %w", i, flowConfigErr(r.Flow, "size", r.Size, "packet size must be positive"))
		}
		if r.Weight < 0 || math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
			return fmt.Errorf("record %d: %w", i, flowConfigErr(r.Flow, "weight", r.Weight, "weight must be positive"))
		}
		if math.IsNaN(r.Time) || math.IsInf(r.Time, 0) || r.Time < last {
			return fmt.Errorf("record %d: %w", i, &OrderingError{Time: r.Time, Clock: last, Flow: r.Flow, What: "arrival record"})
		}
		last = r.Time
		if sim.Config.MaxPacketSize > 0 && r.Size > sim.Config.MaxPacketSize {
			return fmt.Errorf("record %d: %w", i, flowConfigErr(r.Flow, "size", r.Size, fmt.Sprintf("exceeds max packet size %d", sim.Config.MaxPacketSize)))
		}
		maxSize[r.Flow] = max(maxSize[r.Flow], r.Size)
		w := sim.Config.WeightFor(r.Flow, r.Weight)
		if prev, ok := weights[r.Flow]; !ok {
			weights[r.Flow] = w
		} else if prev != w {
			logrus.Warnf("flow %d: record %d weight %g ignored, flow already has weight %g", r.Flow, i, w, prev)
		}
	}
	if sim.Config.Policy == PolicyDRR {
		base := sim.Config.Quantum
		if base == 0 {
			sim.Config.Quantum = sim.sizedQuantum(maxSize, weights)
		}
		if err := sim.checkQuanta(maxSize, weights); err != nil {
			sim.Config.Quantum = base
			return err
		}
		if base == 0 && sim.Config.Quantum > 0 {
			logrus.Infof("drr: base quantum sized to %d bits", sim.Config.Quantum)
		}
	}

	for _, r := range records {
		p := &Packet{
			ID:          sim.nextPacketID,
			Flow:        r.Flow,
			Size:        r.Size,
			ArrivalTime: r.Time,
		}
		sim.nextPacketID++
		if err := sim.Events.Schedule(NewArrivalEvent(p, weights[r.Flow])); err != nil {
			return err
		}
		sim.loadedPackets++
		sim.loadedBits += r.Size
	}
	sim.lastLoadTime = last
	sim.maxSize = maxSize
	sim.weights = weights
	return nil
}

// sizedQuantum returns the smallest base quantum that lets every flow without
// a per-flow override send its largest admissible packet in one visit.
// Zero when no such flow exists yet.
func (sim *Simulator) sizedQuantum(maxSize map[FlowID]int64, weights map[FlowID]float64) int64 {
	var base int64
	for id, w := range weights {
		if _, ok := sim.Config.Quanta[id]; ok {
			continue
		}
		need := max(maxSize[id], sim.Config.MaxPacketSize)
		if sim.Config.QuantumByWeight {
			need = int64(math.Ceil(float64(need) / w))
		}
		base = max(base, need)
	}
	return base
}

// checkQuanta rejects any DRR flow whose quantum cannot cover its largest
// admissible packet; such a flow would need several visits per packet.
func (sim *Simulator) checkQuanta(maxSize map[FlowID]int64, weights map[FlowID]float64) error {
	ids := maps.Keys(weights)
	slices.Sort(ids)
	for _, id := range ids {
		q := sim.Config.QuantumFor(id, weights[id])
		if q <= 0 {
			return flowConfigErr(id, "quantum", q, "quantum must be positive")
		}
		largest := max(maxSize[id], sim.Config.MaxPacketSize)
		if q < largest {
			return flowConfigErr(id, "quantum", q, fmt.Sprintf("smaller than largest packet %d", largest))
		}
	}
	return nil
}

// Schedule pushes an event into the simulator's event queue.
func (sim *Simulator) Schedule(ev Event) error {
	return sim.Events.Schedule(ev)
}

// Clock returns the current simulated time.
func (sim *Simulator) Clock() float64 {
	return sim.Events.Clock()
}

// Departures returns the departure log recorded so far.
// The returned slice MUST NOT be modified.
func (sim *Simulator) Departures() []Departure {
	return sim.departures
}

// Step executes the next event. It returns false once the run has stopped,
// either drained or halted at the horizon.
func (sim *Simulator) Step() (bool, error) {
	switch sim.State {
	case StateIdle:
		sim.State = StateRunning
		logrus.Infof("Starting %s simulation with %d packets (%d bits)", sim.Config.Policy, sim.loadedPackets, sim.loadedBits)
	case StateRunning:
	case StateFailed:
		return false, sim.failure
	default:
		return false, nil
	}

	next, ok := sim.nextLiveEvent()
	if !ok {
		sim.finish()
		return false, sim.failure
	}
	if sim.Config.Horizon > 0 && next.Timestamp() > sim.Config.Horizon {
		sim.State = StateHalted
		logrus.Warnf("[t=%g] Horizon %g reached with work remaining", sim.Clock(), sim.Config.Horizon)
		return false, nil
	}

	ev, _ := sim.Events.Next()
	logrus.Tracef("[t=%g] Executing %T", sim.Clock(), ev)
	if err := ev.Execute(sim); err != nil {
		sim.State = StateFailed
		sim.failure = fmt.Errorf("%s event at t=%g: %w", ev.Kind(), ev.Timestamp(), err)
		return false, sim.failure
	}
	return true, nil
}

// Run processes events until the simulation drains, reaches the horizon, or fails.
func (sim *Simulator) Run() (*Result, error) {
	for {
		more, err := sim.Step()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	logrus.Infof("[t=%g] Simulation ended: %s, %d departures", sim.Clock(), sim.State, len(sim.departures))
	return sim.Result(), nil
}

// nextLiveEvent peeks at the earliest event, discarding departure plans that
// were superseded by a later service decision.
func (sim *Simulator) nextLiveEvent() (Event, bool) {
	for {
		ev, ok := sim.Events.Peek()
		if !ok {
			return nil, false
		}
		if dep, isDep := ev.(*DepartureEvent); !isDep || dep == sim.pendingDeparture {
			return ev, true
		}
		sim.Events.Drop()
		stale := ev.(*DepartureEvent)
		logrus.Tracef("[t=%g] Discarded stale departure of packet %d", stale.time, stale.Packet.ID)
		if sim.Trace != nil {
			sim.Trace.RecordStale(trace.StaleRecord{Clock: sim.Clock(), PacketID: stale.Packet.ID, Departure: stale.time})
		}
	}
}

func (sim *Simulator) finish() {
	if sim.Flows.AnyActive() || sim.pendingDeparture != nil {
		// An empty event queue with backlog means no decision was scheduled.
		sim.State = StateFailed
		sim.failure = fmt.Errorf("event queue exhausted at t=%g with backlog remaining", sim.Clock())
		return
	}
	sim.State = StateDrained
}

// Result summarizes the run so far. Packets still queued or in transmission
// are reported as unserved rather than dropped.
func (sim *Simulator) Result() *Result {
	r := &Result{
		Scheduler:      sim.Config.Policy,
		Rate:           sim.Config.Rate,
		State:          sim.State,
		Drained:        sim.State == StateDrained,
		EndTime:        sim.Clock(),
		Departures:     sim.departures,
		Weights:        make(map[FlowID]float64, sim.Flows.Len()),
		ArrivedPackets: sim.loadedPackets,
		ArrivedBits:    sim.loadedBits,
	}
	for id, w := range sim.weights {
		r.Weights[id] = w
	}
	for _, d := range sim.departures {
		r.DepartedBits += d.Size
	}
	r.UnservedPackets = sim.loadedPackets - len(sim.departures)
	r.UnservedBits = sim.loadedBits - r.DepartedBits
	return r
}

func (sim *Simulator) handleArrival(e *ArrivalEvent) error {
	p := e.Packet
	now := e.time
	p.EnqueueTime = now
	flow, activated, err := sim.Flows.Enqueue(p, e.Weight)
	if err != nil {
		return err
	}
	if err := sim.Policy.OnArrival(now, flow, p, activated); err != nil {
		return fmt.Errorf("flow %d: %w", flow.ID, err)
	}
	if sim.Policy.Fluid() || sim.pendingDeparture == nil {
		return sim.requestService(now)
	}
	return nil
}

func (sim *Simulator) handleService(e *ServiceEvent) error {
	sim.serviceScheduled = false
	now := e.time
	if !sim.Policy.Fluid() && sim.pendingDeparture != nil {
		return nil
	}
	p, at, err := sim.Policy.NextDeparture(now)
	if err != nil {
		return err
	}
	if p == nil {
		sim.pendingDeparture = nil
		return nil
	}
	if cur := sim.pendingDeparture; cur != nil && cur.Packet == p && cur.time == at {
		return nil
	}
	ev := &DepartureEvent{time: at, Packet: p}
	if err := sim.Schedule(ev); err != nil {
		return fmt.Errorf("flow %d: %w", p.Flow, err)
	}
	if sim.Trace != nil {
		rec := trace.ServiceRecord{Clock: now, PacketID: p.ID, Flow: int(p.Flow), Departure: at, Replan: sim.pendingDeparture != nil}
		if f, ok := sim.Flows.Get(p.Flow); ok {
			rec.Deficit = f.Deficit
		}
		sim.Trace.RecordService(rec)
	}
	sim.pendingDeparture = ev
	return nil
}

func (sim *Simulator) handleDeparture(e *DepartureEvent) error {
	p := e.Packet
	now := e.time
	sim.pendingDeparture = nil
	if err := sim.Policy.OnDeparture(now, p); err != nil {
		return fmt.Errorf("flow %d: %w", p.Flow, err)
	}
	if now < p.ArrivalTime {
		return &OrderingError{Time: now, Clock: p.ArrivalTime, Flow: p.Flow, What: "departure before arrival"}
	}
	p.DepartureTime = now
	p.Departed = true
	sim.departures = append(sim.departures, Departure{
		PacketID:      p.ID,
		Flow:          p.Flow,
		Size:          p.Size,
		ArrivalTime:   p.ArrivalTime,
		StartTime:     p.StartTime,
		DepartureTime: now,
		Scheduler:     sim.Policy.Kind(),
	})
	return sim.requestService(now)
}

// requestService schedules a decision tick at now unless one is already pending.
func (sim *Simulator) requestService(now float64) error {
	if sim.serviceScheduled {
		return nil
	}
	if err := sim.Schedule(&ServiceEvent{time: now}); err != nil {
		return err
	}
	sim.serviceScheduled = true
	return nil
}
