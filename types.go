package speechgate

// Backend identifies which transcription engine serves a request.
type Backend int

const (
	// BackendCloud is the metered cloud speech service.
	BackendCloud Backend = iota
	// BackendLocal is the free, lower-fidelity local engine.
	BackendLocal
)

func (b Backend) String() string {
	switch b {
	case BackendCloud:
		return "cloud"
	case BackendLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Transcription is the raw output of an engine. Cloud engines fill Results,
// local engines fill Text.
type Transcription struct {
	Results []Result `json:"results,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Result is one recognized segment with its ranked alternatives.
type Result struct {
	Alternatives []Alternative `json:"alternatives"`
}

// Alternative is a candidate transcript for a result.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Word is a single recognized word with its offsets in seconds.
type Word struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Outcome is the result of dispatching one clip.
type Outcome struct {
	RequestID string
	Backend   Backend
	Engine    string
	Matched   bool
	Word      string

	// Err is the recovered engine failure, if any. It is informational only;
	// a failed transcription is reported as Matched=false.
	Err error
}
