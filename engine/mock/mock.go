package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ineyio/speechgate"
)

// Engine is a mock speech engine for testing.
type Engine struct {
	name         string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	transcript   speechgate.Transcription
	responseFunc func(speechgate.EngineRequest) (speechgate.Transcription, error)

	mu   sync.Mutex
	last speechgate.EngineRequest
}

var _ speechgate.Engine = (*Engine)(nil)

// Option configures a mock Engine.
type Option func(*Engine)

// New creates a mock engine with the given options.
// By default it hears "hello" with no trigger word.
func New(opts ...Option) *Engine {
	e := &Engine{
		name:       "mock",
		transcript: speechgate.Transcription{Text: "hello"},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithName sets the engine name.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithText makes the engine return a local-style plain-text transcription.
func WithText(text string) Option {
	return func(e *Engine) { e.transcript = speechgate.Transcription{Text: text} }
}

// WithResults makes the engine return cloud-style ranked results.
func WithResults(results ...speechgate.Result) Option {
	return func(e *Engine) { e.transcript = speechgate.Transcription{Results: results} }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(e *Engine) { e.latency = d }
}

// WithFailAfter makes the engine fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(e *Engine) { e.failAfter = n }
}

// WithError makes the engine always return this error.
func WithError(err error) Option {
	return func(e *Engine) { e.staticErr = err }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(speechgate.EngineRequest) (speechgate.Transcription, error)) Option {
	return func(e *Engine) { e.responseFunc = fn }
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Transcribe(ctx context.Context, req speechgate.EngineRequest) (speechgate.Transcription, error) {
	if e.latency > 0 {
		select {
		case <-time.After(e.latency):
		case <-ctx.Done():
			return speechgate.Transcription{}, ctx.Err()
		}
	}

	count := e.callCount.Add(1)

	e.mu.Lock()
	e.last = req
	e.mu.Unlock()

	if e.staticErr != nil {
		return speechgate.Transcription{}, e.staticErr
	}

	if e.failAfter > 0 && int(count) > e.failAfter {
		return speechgate.Transcription{}, speechgate.ErrServiceRequest
	}

	if e.responseFunc != nil {
		return e.responseFunc(req)
	}

	return e.transcript, nil
}

// CallCount returns the number of calls made to the engine.
func (e *Engine) CallCount() int64 { return e.callCount.Load() }

// LastRequest returns the most recent request the engine received.
func (e *Engine) LastRequest() speechgate.EngineRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Alt builds a one-alternative result from words, for WithResults.
func Alt(confidence float64, words ...string) speechgate.Result {
	alt := speechgate.Alternative{Confidence: confidence}
	for i, w := range words {
		if i > 0 {
			alt.Transcript += " "
		}
		alt.Transcript += w
		alt.Words = append(alt.Words, speechgate.Word{Word: w})
	}
	return speechgate.Result{Alternatives: []speechgate.Alternative{alt}}
}
