package speechgate

import "time"

// Meter observes dispatch events for monitoring/logging.
type Meter interface {
	// OnRoute is called when a backend has been selected.
	OnRoute(event RouteEvent)

	// OnResult is called when an engine call has finished.
	OnResult(event ResultEvent)

	// OnCharge is called when a charge has been applied, dropped or failed.
	OnCharge(event ChargeEvent)
}

// RouteEvent describes a routing decision.
type RouteEvent struct {
	RequestID        string
	Backend          Backend
	Engine           string
	ProcessedSeconds float64
	Exhausted        bool
}

// ResultEvent describes the outcome of an engine call.
type ResultEvent struct {
	RequestID string
	Backend   Backend
	Engine    string
	Success   bool
	Matched   bool
	Duration  time.Duration
	Error     error
}

// ChargeEvent describes a ledger charge.
type ChargeEvent struct {
	RequestID string
	Seconds   float64
	Charged   float64 // seconds actually added; 0 when a discard rollover drops the charge
	Total     float64
	Rolled    bool
	Dropped   bool
	Error     error
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (noopMeter) OnRoute(RouteEvent)   {}
func (noopMeter) OnResult(ResultEvent) {}
func (noopMeter) OnCharge(ChargeEvent) {}
