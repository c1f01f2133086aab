package speechgate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCloudLanguage   = "en-AU"
	DefaultLocalLanguage   = "en-US"
	DefaultMaxAlternatives = 10

	defaultEngineTimeout = 15 * time.Second
)

// route binds a backend to the engine and interpreter that serve it.
type route struct {
	backend     Backend
	engine      Engine
	interpreter Interpreter
	language    string
	timeout     time.Duration
}

// Dispatcher decides per clip which engine transcribes it, reports whether a
// trigger word was heard, and charges the ledger for cloud usage.
type Dispatcher struct {
	ledger *Ledger
	words  *Dictionary
	cloud  Engine
	local  Engine
	routes map[Backend]route

	policy          Policy
	meter           Meter
	health          *HealthTracker
	charger         *Charger
	ownsCharger     bool
	logger          *slog.Logger
	cloudTimeout    time.Duration
	localTimeout    time.Duration
	minCharge       float64
	minConfidence   float64
	cloudLanguage   string
	localLanguage   string
	maxAlternatives int
	now             func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy sets the backend selection policy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(d *Dispatcher) { d.meter = m }
}

// WithHealthTracker sets the health tracker.
func WithHealthTracker(h *HealthTracker) Option {
	return func(d *Dispatcher) { d.health = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithCharger sets the charger. The caller keeps ownership and must close it.
func WithCharger(c *Charger) Option {
	return func(d *Dispatcher) { d.charger = c }
}

// WithEngineTimeout bounds every engine call. A timeout is an engine failure.
func WithEngineTimeout(timeout time.Duration) Option {
	return WithEngineTimeouts(timeout, timeout)
}

// WithEngineTimeouts bounds cloud and local engine calls separately.
func WithEngineTimeouts(cloud, local time.Duration) Option {
	return func(d *Dispatcher) {
		d.cloudTimeout = cloud
		d.localTimeout = local
	}
}

// WithMinCharge sets the minimum seconds charged per cloud clip.
func WithMinCharge(seconds float64) Option {
	return func(d *Dispatcher) { d.minCharge = seconds }
}

// WithMinConfidence sets the cloud alternative confidence gate.
func WithMinConfidence(c float64) Option {
	return func(d *Dispatcher) { d.minConfidence = c }
}

// WithLanguages sets the recognition language of each backend.
func WithLanguages(cloud, local string) Option {
	return func(d *Dispatcher) {
		d.cloudLanguage = cloud
		d.localLanguage = local
	}
}

// WithMaxAlternatives sets how many alternatives the cloud engine is asked for.
func WithMaxAlternatives(n int) Option {
	return func(d *Dispatcher) { d.maxAlternatives = n }
}

// WithClock sets the clock used for quota checks and charges.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher. The cloud engine is metered by ledger;
// the local engine is free and serves every request once the quota is exhausted.
func NewDispatcher(ledger *Ledger, cloud, local Engine, words *Dictionary, opts ...Option) (*Dispatcher, error) {
	if ledger == nil {
		return nil, fmt.Errorf("speechgate: ledger is required")
	}
	if cloud == nil || local == nil {
		return nil, fmt.Errorf("speechgate: both cloud and local engines are required")
	}
	if words == nil {
		return nil, fmt.Errorf("speechgate: dictionary is required")
	}

	d := &Dispatcher{
		ledger:          ledger,
		words:           words,
		cloud:           cloud,
		local:           local,
		cloudTimeout:    defaultEngineTimeout,
		localTimeout:    defaultEngineTimeout,
		minCharge:       DefaultMinChargeSeconds,
		minConfidence:   DefaultMinConfidence,
		cloudLanguage:   DefaultCloudLanguage,
		localLanguage:   DefaultLocalLanguage,
		maxAlternatives: DefaultMaxAlternatives,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	// Apply defaults after options.
	if d.policy == nil {
		d.policy = defaultQuotaPolicy{}
	}
	if d.meter == nil {
		d.meter = noopMeter{}
	}
	if d.health == nil {
		d.health = NewHealthTracker()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.charger == nil {
		d.charger = NewCharger(ledger, WithChargeMeter(d.meter), WithChargeLogger(d.logger))
		d.ownsCharger = true
	}

	d.routes = map[Backend]route{
		BackendCloud: {
			backend:     BackendCloud,
			engine:      cloud,
			interpreter: CloudInterpreter{Words: words, MinConfidence: d.minConfidence},
			language:    d.cloudLanguage,
			timeout:     d.cloudTimeout,
		},
		BackendLocal: {
			backend:     BackendLocal,
			engine:      local,
			interpreter: LocalInterpreter{Words: words},
			language:    d.localLanguage,
			timeout:     d.localTimeout,
		},
	}

	return d, nil
}

// Dispatch transcribes the clip in file and reports whether it holds a trigger word.
// Dispatch owns file and deletes it before returning, on every path.
// Engine failures are logged and reported as Matched=false.
func (d *Dispatcher) Dispatch(ctx context.Context, file *TempFile) Outcome {
	defer file.Release()

	requestID := uuid.NewString()
	snap := d.ledger.Snapshot(d.now())
	rt := d.route(d.policy.Select(snap))
	name := rt.engine.Name()

	out := Outcome{RequestID: requestID, Backend: rt.backend, Engine: name}

	d.meter.OnRoute(RouteEvent{
		RequestID:        requestID,
		Backend:          rt.backend,
		Engine:           name,
		ProcessedSeconds: snap.ProcessedSeconds,
		Exhausted:        snap.Exhausted(),
	})

	start := time.Now()
	clip, err := ReadClip(file.Path())
	if err != nil {
		return d.fail(out, err, time.Since(start))
	}

	tr, err := d.transcribe(ctx, rt, clip)
	duration := time.Since(start)
	d.health.Observe(name, err)
	if err != nil {
		return d.fail(out, err, duration)
	}

	// Local usage is free; only cloud transcriptions are charged.
	if rt.backend == BackendCloud {
		d.charger.Submit(ChargeTask{
			RequestID: requestID,
			Seconds:   EstimateCharge(bytes.NewReader(clip.Data), d.minCharge),
			At:        d.now(),
		})
	}

	out.Word, out.Matched = rt.interpreter.Interpret(tr)

	d.meter.OnResult(ResultEvent{
		RequestID: requestID,
		Backend:   rt.backend,
		Engine:    name,
		Success:   true,
		Matched:   out.Matched,
		Duration:  duration,
	})
	d.logger.Debug("clip dispatched",
		"request_id", requestID,
		"backend", rt.backend.String(),
		"engine", name,
		"matched", out.Matched,
		"word", out.Word,
	)

	return out
}

// DispatchFile is Dispatch for a file the caller hands over by path.
func (d *Dispatcher) DispatchFile(ctx context.Context, path string) Outcome {
	return d.Dispatch(ctx, AdoptTemp(path, WithTempLogger(d.logger)))
}

// Quota returns the current ledger snapshot and the backend it selects.
func (d *Dispatcher) Quota() (Snapshot, Backend) {
	snap := d.ledger.Snapshot(d.now())
	return snap, d.route(d.policy.Select(snap)).backend
}

// ResetQuota opens a fresh accounting period now.
func (d *Dispatcher) ResetQuota(ctx context.Context) error {
	return d.ledger.Reset(ctx, d.now())
}

// Health returns the health of both engines, including ones not yet called.
func (d *Dispatcher) Health() map[string]EngineHealth {
	out := d.health.Snapshot()
	for _, e := range []Engine{d.cloud, d.local} {
		if _, ok := out[e.Name()]; !ok {
			out[e.Name()] = d.health.Status(e.Name())
		}
	}
	return out
}

// Close waits for scheduled charges when the dispatcher owns its charger.
func (d *Dispatcher) Close(ctx context.Context) error {
	if !d.ownsCharger {
		return nil
	}
	return d.charger.Close(ctx)
}

// route resolves a policy decision; anything but BackendCloud is served locally.
func (d *Dispatcher) route(b Backend) route {
	if rt, ok := d.routes[b]; ok {
		return rt
	}
	return d.routes[BackendLocal]
}

func (d *Dispatcher) transcribe(ctx context.Context, rt route, clip Clip) (Transcription, error) {
	ctx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	tr, err := rt.engine.Transcribe(ctx, EngineRequest{
		Clip:            clip,
		Language:        rt.language,
		MaxAlternatives: d.maxAlternatives,
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Transcription{}, fmt.Errorf("%w: %w", ErrEngineTimeout, err)
	}
	return tr, err
}

func (d *Dispatcher) fail(out Outcome, err error, duration time.Duration) Outcome {
	out.Err = &EngineError{
		Err:       err,
		Engine:    out.Engine,
		Backend:   out.Backend,
		RequestID: out.RequestID,
	}

	d.logger.Warn("transcription failed",
		"request_id", out.RequestID,
		"backend", out.Backend.String(),
		"engine", out.Engine,
		"error", err,
	)
	d.meter.OnResult(ResultEvent{
		RequestID: out.RequestID,
		Backend:   out.Backend,
		Engine:    out.Engine,
		Success:   false,
		Duration:  duration,
		Error:     out.Err,
	})
	return out
}
