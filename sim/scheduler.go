package sim

import (
	"fmt"
)

// PolicyKind names a scheduling discipline.
type PolicyKind string

const (
	PolicyGPS PolicyKind = "gps"
	PolicyRR  PolicyKind = "rr"
	PolicyDRR PolicyKind = "drr"
)

// ValidPolicies is the set of recognized policy names.
var ValidPolicies = map[string]bool{string(PolicyGPS): true, string(PolicyRR): true, string(PolicyDRR): true}

// AllPolicies lists every policy in a fixed order, for comparisons.
var AllPolicies = []PolicyKind{PolicyGPS, PolicyRR, PolicyDRR}

// IsValidPolicy returns true if name is a recognized policy.
func IsValidPolicy(name string) bool { return ValidPolicies[name] }

// Policy decides which packet departs next and when.
// The Simulator calls OnArrival after a packet joins its flow's backlog,
// NextDeparture whenever a service decision is due, and OnDeparture when the
// planned departure fires. Policies mutate flows only through the FlowTable.
type Policy interface {
	Kind() PolicyKind

	// Fluid policies serve every active flow at once and re-plan the next
	// departure after each activity change. Packetized policies commit to a
	// departure when transmission starts and are asked again only once idle.
	Fluid() bool

	// OnArrival updates policy state for p. activated is true when p's flow
	// was inactive before p arrived.
	OnArrival(now float64, flow *Flow, p *Packet, activated bool) error

	// NextDeparture returns the packet that departs next and its departure
	// time, or nil when no flow is active.
	NextDeparture(now float64) (*Packet, float64, error)

	// OnDeparture finalizes the departure of p at now.
	OnDeparture(now float64, p *Packet) error
}

// NewPolicy creates the policy named by cfg.Policy over the given flow table.
// cfg must already be validated.
func NewPolicy(cfg *Config, flows *FlowTable) (Policy, error) {
	if !IsValidPolicy(string(cfg.Policy)) {
		return nil, configErr("policy", cfg.Policy, "unknown scheduling policy")
	}
	switch cfg.Policy {
	case PolicyGPS:
		return NewGPSPolicy(flows, cfg.Rate), nil
	case PolicyRR:
		return NewRRPolicy(flows, cfg.Rate), nil
	case PolicyDRR:
		return NewDRRPolicy(flows, cfg), nil
	default:
		panic(fmt.Sprintf("unhandled policy %q", cfg.Policy))
	}
}
