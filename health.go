package speechgate

import (
	"errors"
	"sync"
	"time"
)

const (
	healthFailureThreshold = 3
	healthFailureWindow    = 5 * time.Minute
	healthCooldown         = 30 * time.Second
)

// HealthState describes the observed health of an engine.
type HealthState int

const (
	HealthHealthy HealthState = iota
	HealthUnhealthy
	HealthHalfOpen
)

func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	case HealthHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// EngineHealth is what /healthz reports for one engine.
type EngineHealth struct {
	State       HealthState
	Failures    int // service failures inside the window
	LastError   string
	LastFailure time.Time
}

// HealthTracker follows each engine through healthy, unhealthy and half-open
// states from the outcome of its calls. It is observational: backend selection
// depends on the ledger only.
//
// Only service faults count against an engine. An engine that answered but
// heard nothing (ErrUnintelligible) did its job.
type HealthTracker struct {
	mu      sync.Mutex
	engines map[string]*engineRecord
	now     func() time.Time
}

type engineRecord struct {
	state     HealthState
	failures  []time.Time
	trippedAt time.Time
	lastErr   error
	lastFail  time.Time
}

// HealthOption configures a HealthTracker.
type HealthOption func(*HealthTracker)

// WithHealthClock sets the clock used for the failure window and cooldown.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthTracker) { h.now = now }
}

// NewHealthTracker creates a new HealthTracker.
func NewHealthTracker(opts ...HealthOption) *HealthTracker {
	h := &HealthTracker{
		engines: make(map[string]*engineRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Observe records the outcome of one engine call.
func (h *HealthTracker) Observe(engine string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.record(engine)
	if err == nil || errors.Is(err, ErrUnintelligible) {
		rec.state = HealthHealthy
		rec.failures = nil
		return
	}

	now := h.now()
	rec.lastErr = err
	rec.lastFail = now

	// A failed trial call in half-open trips the breaker again straight away.
	if h.stateLocked(rec, now) == HealthHalfOpen {
		rec.state = HealthUnhealthy
		rec.trippedAt = now
		return
	}
	if rec.state == HealthUnhealthy {
		return
	}

	rec.failures = append(pruneBefore(rec.failures, now.Add(-healthFailureWindow)), now)
	if len(rec.failures) >= healthFailureThreshold {
		rec.state = HealthUnhealthy
		rec.trippedAt = now
	}
}

// State returns the current health state of an engine.
func (h *HealthTracker) State(engine string) HealthState {
	return h.Status(engine).State
}

// Status returns the full health record of an engine. Unknown engines are healthy.
func (h *HealthTracker) Status(engine string) EngineHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.engines[engine]
	if !ok {
		return EngineHealth{State: HealthHealthy}
	}
	return h.statusLocked(rec)
}

// Snapshot returns the health of every engine observed so far.
func (h *HealthTracker) Snapshot() map[string]EngineHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]EngineHealth, len(h.engines))
	for name, rec := range h.engines {
		out[name] = h.statusLocked(rec)
	}
	return out
}

func (h *HealthTracker) statusLocked(rec *engineRecord) EngineHealth {
	now := h.now()
	st := EngineHealth{
		State:       h.stateLocked(rec, now),
		Failures:    len(pruneBefore(rec.failures, now.Add(-healthFailureWindow))),
		LastFailure: rec.lastFail,
	}
	if rec.lastErr != nil {
		st.LastError = rec.lastErr.Error()
	}
	return st
}

// stateLocked moves an unhealthy engine to half-open once the cooldown has passed.
func (h *HealthTracker) stateLocked(rec *engineRecord, now time.Time) HealthState {
	if rec.state == HealthUnhealthy && now.Sub(rec.trippedAt) >= healthCooldown {
		rec.state = HealthHalfOpen
	}
	return rec.state
}

func (h *HealthTracker) record(engine string) *engineRecord {
	rec, ok := h.engines[engine]
	if !ok {
		rec = &engineRecord{state: HealthHealthy}
		h.engines[engine] = rec
	}
	return rec
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
