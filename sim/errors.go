package sim

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. Every typed error below unwraps to one of them.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrOrdering      = errors.New("ordering error")
	ErrEmptyFlow     = errors.New("empty flow")
)

// ConfigurationError reports a parameter rejected before a run starts:
// non-positive weight, size or quantum, or a DRR quantum smaller than the
// largest packet its flow can submit.
type ConfigurationError struct {
	Field   string
	Flow    FlowID
	HasFlow bool
	Value   any
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.HasFlow {
		return fmt.Sprintf("configuration error: flow %d: %s=%v: %s", e.Flow, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configErr(field string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

func flowConfigErr(flow FlowID, field string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Flow: flow, HasFlow: true, Value: value, Reason: reason}
}

// OrderingError reports an event proposed at a time before the current clock.
// Once inputs are validated this indicates a bug in a policy or the driver.
type OrderingError struct {
	Time  float64
	Clock float64
	Flow  FlowID
	What  string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("ordering error: %s for flow %d at t=%g is before clock t=%g", e.What, e.Flow, e.Time, e.Clock)
}

func (e *OrderingError) Unwrap() error { return ErrOrdering }

// EmptyFlowError reports a dequeue attempted on an inactive flow.
type EmptyFlowError struct {
	Flow FlowID
}

func (e *EmptyFlowError) Error() string {
	return fmt.Sprintf("dequeue from empty flow %d", e.Flow)
}

func (e *EmptyFlowError) Unwrap() error { return ErrEmptyFlow }
