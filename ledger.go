package speechgate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultThresholdSeconds is the processed time after which the cloud quota
// counts as exhausted (just under one hour).
const DefaultThresholdSeconds = 3570.0

// LedgerStore persists the single ledger record.
type LedgerStore interface {
	// Load reads the stored state. A store without a record returns the zero LedgerState.
	Load(ctx context.Context) (LedgerState, error)

	// Save fully replaces the stored state.
	Save(ctx context.Context, state LedgerState) error
}

// LedgerState is the durable form of the ledger.
type LedgerState struct {
	ProcessedSeconds float64 `json:"processed_seconds"`
	PeriodAnchor     string  `json:"period_anchor"` // AnchorLayout, or empty
}

// Snapshot is a consistent read of the ledger.
type Snapshot struct {
	ProcessedSeconds float64
	Anchor           time.Time
	Threshold        float64
}

// Exhausted reports whether processed time is strictly above the threshold.
func (s Snapshot) Exhausted() bool {
	return s.ProcessedSeconds > s.Threshold
}

// Remaining returns the seconds left before exhaustion, never negative.
func (s Snapshot) Remaining() float64 {
	if r := s.Threshold - s.ProcessedSeconds; r > 0 {
		return r
	}
	return 0
}

// ChargeResult describes the ledger after a charge.
type ChargeResult struct {
	Charged float64
	Total   float64
	Anchor  time.Time
	Rolled  bool
}

// Ledger is the process-wide counter of processed seconds in the open period.
// All state is guarded by mu, which is held only for compare-update-persist.
type Ledger struct {
	mu        sync.Mutex
	store     LedgerStore
	period    Period
	threshold float64
	now       func() time.Time

	total  float64
	anchor time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithPeriod sets the accounting period policy.
func WithPeriod(p Period) LedgerOption {
	return func(l *Ledger) { l.period = p }
}

// WithThreshold sets the exhaustion threshold in seconds.
func WithThreshold(seconds float64) LedgerOption {
	return func(l *Ledger) { l.threshold = seconds }
}

// WithLedgerClock sets the clock used to seed an empty anchor.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// OpenLedger loads the ledger from store. Any load or decode failure is returned;
// callers must not serve requests with an unknown quota state.
func OpenLedger(ctx context.Context, store LedgerStore, opts ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("speechgate: ledger store is required")
	}

	l := &Ledger{
		store:     store,
		period:    DefaultPeriod(),
		threshold: DefaultThresholdSeconds,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.period.Validate(); err != nil {
		return nil, err
	}

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("speechgate: load ledger: %w", err)
	}

	secs := state.ProcessedSeconds
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return nil, fmt.Errorf("%w: processed_seconds=%v", ErrLedgerCorrupt, secs)
	}
	l.total = secs

	if state.PeriodAnchor == "" {
		l.anchor = l.period.In(l.now())
	} else {
		anchor, err := l.period.ParseAnchor(state.PeriodAnchor)
		if err != nil {
			return nil, fmt.Errorf("%w: period_anchor=%q: %v", ErrLedgerCorrupt, state.PeriodAnchor, err)
		}
		l.anchor = anchor
	}

	return l, nil
}

// Snapshot returns the ledger as seen at now. If now falls in a later period than
// the anchor, the rolled-over view (zero seconds, anchor=now) is returned without
// writing it; the next charge performs the actual rollover.
func (l *Ledger) Snapshot(now time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.period.Same(l.anchor, now) {
		return Snapshot{Anchor: l.period.In(now), Threshold: l.threshold}
	}
	return Snapshot{ProcessedSeconds: l.total, Anchor: l.anchor, Threshold: l.threshold}
}

// State returns the stored values without the rollover view.
func (l *Ledger) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Snapshot{ProcessedSeconds: l.total, Anchor: l.anchor, Threshold: l.threshold}
}

// Exhausted reports whether the quota is used up at now.
func (l *Ledger) Exhausted(now time.Time) bool {
	return l.Snapshot(now).Exhausted()
}

// Charge adds seconds to the open period, rolling over first if now starts a new one.
// The new state is persisted before returning. On a persist failure the in-memory
// state has still advanced and the returned error wraps ErrPersist.
func (l *Ledger) Charge(ctx context.Context, seconds float64, now time.Time) (ChargeResult, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return ChargeResult{}, fmt.Errorf("%w: %v seconds", ErrInvalidCharge, seconds)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res := ChargeResult{Charged: seconds}
	if l.period.Same(l.anchor, now) {
		l.total += seconds
	} else {
		res.Rolled = true
		l.anchor = l.period.In(now)
		if l.period.Rollover == RolloverDiscard {
			l.total = 0
			res.Charged = 0
		} else {
			// Zero-then-add and reset-to-charge both open the period at the charge.
			l.total = seconds
		}
	}
	res.Total = l.total
	res.Anchor = l.anchor

	return res, l.persistLocked(ctx)
}

// Reset opens a fresh period at now with zero processed time.
func (l *Ledger) Reset(ctx context.Context, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total = 0
	l.anchor = l.period.In(now)
	return l.persistLocked(ctx)
}

// Period returns the accounting period policy.
func (l *Ledger) Period() Period { return l.period }

// persistLocked writes the current state. Must be called with mu held.
func (l *Ledger) persistLocked(ctx context.Context) error {
	state := LedgerState{
		ProcessedSeconds: l.total,
		PeriodAnchor:     l.period.FormatAnchor(l.anchor),
	}
	if err := l.store.Save(ctx, state); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
