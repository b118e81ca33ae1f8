package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// GPSPolicy is bit-by-bit Generalized Processor Sharing computed with the
// virtual-time method. The potential V advances at rate / ΣW, where ΣW is
// the weight sum of active flows, and is updated lazily at event boundaries.
// Every packet is stamped on arrival with
//
//	S = max(V(arrival), F of the flow's previous packet)
//	F = S + size / weight
//
// and packets leave in increasing F. The real departure time of the next
// packet is found by solving V(t) = F under the current ΣW; any arrival
// before then changes ΣW, so the Simulator re-plans after every event.
type GPSPolicy struct {
	flows *FlowTable
	rate  float64

	potential    float64 // V at lastUpdate
	lastUpdate   float64
	activeWeight float64 // ΣW over the interval since lastUpdate
}

// NewGPSPolicy creates a GPS policy with aggregate service rate bits per time unit.
func NewGPSPolicy(flows *FlowTable, rate float64) *GPSPolicy {
	return &GPSPolicy{flows: flows, rate: rate}
}

func (g *GPSPolicy) Kind() PolicyKind { return PolicyGPS }

func (g *GPSPolicy) Fluid() bool { return true }

// Potential returns V at the last event boundary.
func (g *GPSPolicy) Potential() float64 { return g.potential }

// advance brings V up to now using the weight sum valid since the last update.
// V is frozen while the system is idle.
func (g *GPSPolicy) advance(now float64) {
	if now > g.lastUpdate && g.activeWeight > 0 {
		g.potential += (now - g.lastUpdate) * g.rate / g.activeWeight
	}
	g.lastUpdate = max(g.lastUpdate, now)
}

// refreshWeight recomputes ΣW from the flow table after an activity change,
// which avoids drift from repeated float additions and subtractions.
func (g *GPSPolicy) refreshWeight() {
	sum := 0.0
	for _, f := range g.flows.Flows() {
		if f.Active() {
			sum += f.Weight
		}
	}
	g.activeWeight = sum
}

func (g *GPSPolicy) OnArrival(now float64, f *Flow, p *Packet, activated bool) error {
	g.advance(now)
	start := max(g.potential, f.VirtualFinish)
	p.VirtualStart = start
	p.VirtualFinish = start + float64(p.Size)/f.Weight
	f.VirtualFinish = p.VirtualFinish
	if activated {
		p.StartTime = now
		g.refreshWeight()
	}
	logrus.Tracef("gps: packet %d flow %d S=%g F=%g V=%g", p.ID, f.ID, p.VirtualStart, p.VirtualFinish, g.potential)
	return nil
}

func (g *GPSPolicy) NextDeparture(now float64) (*Packet, float64, error) {
	g.advance(now)
	var next *Packet
	for _, f := range g.flows.Flows() {
		head := f.Head()
		if head == nil {
			continue
		}
		if next == nil || finishesBefore(head, next) {
			next = head
		}
	}
	if next == nil {
		return nil, 0, nil
	}
	if g.activeWeight <= 0 {
		return nil, 0, fmt.Errorf("gps: packet %d backlogged with zero active weight", next.ID)
	}
	remaining := max(next.VirtualFinish-g.potential, 0)
	return next, now + remaining*g.activeWeight/g.rate, nil
}

// finishesBefore orders head packets by virtual finish, then lower flow
// identifier, then earlier arrival.
func finishesBefore(a, b *Packet) bool {
	if a.VirtualFinish != b.VirtualFinish {
		return a.VirtualFinish < b.VirtualFinish
	}
	if a.Flow != b.Flow {
		return a.Flow < b.Flow
	}
	return a.ArrivalTime < b.ArrivalTime
}

func (g *GPSPolicy) OnDeparture(now float64, p *Packet) error {
	g.advance(now)
	g.potential = max(g.potential, p.VirtualFinish)
	f, ok := g.flows.Get(p.Flow)
	if !ok || f.Head() != p {
		return fmt.Errorf("gps: departing packet %d is not head-of-line of flow %d", p.ID, p.Flow)
	}
	if _, err := g.flows.DequeueHead(p.Flow); err != nil {
		return fmt.Errorf("gps: %w", err)
	}
	if head := f.Head(); head != nil {
		head.StartTime = now
	} else {
		g.refreshWeight()
	}
	return nil
}
