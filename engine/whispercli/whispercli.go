// Package whispercli runs the whisper.cpp command-line tool as the free local backend.
package whispercli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ineyio/speechgate"
)

// Engine transcribes clips by running whisper-cli on the clip file.
type Engine struct {
	binary    string
	modelPath string
	threads   int
}

var _ speechgate.Engine = (*Engine)(nil)

// Option configures the engine.
type Option func(*Engine)

// WithBinary sets the executable (default "whisper-cli", looked up in PATH).
func WithBinary(path string) Option {
	return func(e *Engine) { e.binary = path }
}

// WithThreads sets the number of decoding threads (whisper default when 0).
func WithThreads(n int) Option {
	return func(e *Engine) { e.threads = n }
}

// New creates an engine using the ggml model at modelPath.
func New(modelPath string, opts ...Option) *Engine {
	e := &Engine{
		binary:    "whisper-cli",
		modelPath: modelPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "whispercli" }

// Args returns the command-line arguments used for a request.
func (e *Engine) Args(req speechgate.EngineRequest) []string {
	args := []string{"-m", e.modelPath, "-f", req.Clip.Path, "-nt", "-np"}
	if lang, _, _ := strings.Cut(req.Language, "-"); lang != "" {
		args = append(args, "-l", strings.ToLower(lang))
	}
	if e.threads > 0 {
		args = append(args, "-t", fmt.Sprint(e.threads))
	}
	return args
}

func (e *Engine) Transcribe(ctx context.Context, req speechgate.EngineRequest) (speechgate.Transcription, error) {
	if req.Clip.Path == "" {
		return speechgate.Transcription{}, fmt.Errorf("%w: whispercli needs a clip file", speechgate.ErrServiceRequest)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, e.Args(req)...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return speechgate.Transcription{}, ctx.Err()
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return speechgate.Transcription{}, fmt.Errorf("%w: whisper-cli exit %d: %s",
				speechgate.ErrServiceRequest, ee.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return speechgate.Transcription{}, fmt.Errorf("%w: run whisper-cli: %v", speechgate.ErrServiceRequest, err)
	}

	text := strings.Join(strings.Fields(string(out)), " ")
	if text == "" {
		return speechgate.Transcription{}, speechgate.ErrUnintelligible
	}
	return speechgate.Transcription{Text: text}, nil
}
