package speechgate

import "context"

// Engine is the interface that speech backend adapters must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "googlespeech", "whispercli").
	Name() string

	// Transcribe recognizes speech in the clip. Recoverable failures should wrap
	// ErrUnintelligible or ErrServiceRequest.
	Transcribe(ctx context.Context, req EngineRequest) (Transcription, error)
}

// EngineRequest is the request sent to an engine adapter.
type EngineRequest struct {
	Clip            Clip
	Language        string
	MaxAlternatives int
}
